package perm

// Pacote perm calcula permissões efetivas: as regras do papel servem de base
// e os overrides individuais do usuário substituem folha a folha. Todas as
// funções são puras e nunca retornam erro; entrada ausente ou malformada
// resolve para o resultado mais restritivo (fail-closed).

// Grants descreve um papel com suas regras padrão.
type Grants struct {
	RoleID   string
	RoleName string
	Rules    RuleSet
}

// Subject descreve o usuário autenticado do ponto de vista de permissões.
type Subject struct {
	ID        string
	RoleID    string
	RoleName  string
	Overrides RuleSet
}

// bypassRoles dispensam verificação de regra.
var bypassRoles = map[string]struct{}{
	"SuperAdmin": {},
	"CEO":        {},
}

// IsBypassRole indica se o papel tem acesso irrestrito.
func IsBypassRole(roleName string) bool {
	_, ok := bypassRoles[roleName]
	return ok
}

// Merge combina base e override em nível de folha: cada par módulo/ação
// presente no override substitui integralmente o valor da base (inclusive
// trocando booleano por escopo, e vice-versa); pares ausentes no override
// são herdados da base sem alteração.
func Merge(base, override RuleSet) RuleSet {
	merged := base.Clone()
	if merged == nil {
		merged = RuleSet{}
	}
	for module, actions := range override {
		target, ok := merged[module]
		if !ok {
			target = make(Actions, len(actions))
			merged[module] = target
		}
		for action, rule := range actions {
			rule.AllowedUserIDs = append([]string(nil), rule.AllowedUserIDs...)
			target[action] = rule
		}
	}
	return merged
}

// Resolve computa o conjunto efetivo de permissões do sujeito.
// Sem sujeito ou sem papéis cadastrados o resultado é vazio, o que nega
// qualquer ação no consumo posterior.
func Resolve(sub *Subject, roles []Grants) RuleSet {
	if sub == nil || len(roles) == 0 {
		return RuleSet{}
	}

	var base RuleSet
	for _, role := range roles {
		if role.RoleID == sub.RoleID {
			base = role.Rules
			break
		}
	}

	return Merge(base, sub.Overrides)
}

// Can responde se o sujeito alcança a ação no módulo. Papéis administrativos
// têm bypass incondicional; ausência de regra nega.
func Can(sub *Subject, effective RuleSet, module, action string) bool {
	if sub == nil {
		return false
	}
	if IsBypassRole(sub.RoleName) {
		return true
	}

	actions, ok := effective[module]
	if !ok {
		return false
	}
	rule, ok := actions[action]
	if !ok {
		return false
	}
	return rule.Granted()
}

// EffectiveScope devolve a abrangência resolvida de uma ação, para uso da
// camada de consulta ao filtrar registros visíveis. Regras booleanas valem
// como "all" quando permitidas; ausência resolve para "none".
func EffectiveScope(sub *Subject, effective RuleSet, module, action string) (Scope, []string) {
	if sub == nil {
		return ScopeNone, nil
	}
	if IsBypassRole(sub.RoleName) {
		return ScopeAll, nil
	}

	actions, ok := effective[module]
	if !ok {
		return ScopeNone, nil
	}
	rule, ok := actions[action]
	if !ok {
		return ScopeNone, nil
	}

	switch rule.Kind {
	case RuleBool:
		if rule.Allow {
			return ScopeAll, nil
		}
		return ScopeNone, nil
	case RuleScoped:
		if rule.Scope == "" {
			return ScopeNone, nil
		}
		return rule.Scope, append([]string(nil), rule.AllowedUserIDs...)
	}
	return ScopeNone, nil
}
