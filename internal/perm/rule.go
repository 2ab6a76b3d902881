package perm

import (
	"encoding/json"
	"strings"
)

// Scope define a abrangência de registros de uma ação.
type Scope string

const (
	ScopeNone          Scope = "none"
	ScopeOwn           Scope = "own"
	ScopeAll           Scope = "all"
	ScopeSpecificUsers Scope = "specific-users"
)

// RuleKind discrimina a variante da regra.
type RuleKind int

const (
	// RuleBool cobre capacidades simples (ex.: "create").
	RuleBool RuleKind = iota
	// RuleScoped cobre ações com abrangência (view/edit/delete).
	RuleScoped
)

// Rule é a regra de permissão de um par módulo/ação: booleana ou com escopo.
// O formato persistido (JSONB) é `true`/`false` ou
// `{"scope": "...", "allowedUserIds": [...]}`.
type Rule struct {
	Kind           RuleKind
	Allow          bool
	Scope          Scope
	AllowedUserIDs []string
}

// BoolRule cria uma regra booleana.
func BoolRule(allow bool) Rule {
	return Rule{Kind: RuleBool, Allow: allow}
}

// ScopedRule cria uma regra com escopo.
func ScopedRule(scope Scope, allowedUserIDs ...string) Rule {
	return Rule{Kind: RuleScoped, Scope: scope, AllowedUserIDs: allowedUserIDs}
}

// Granted responde se a ação é alcançável. Para regras com escopo não filtra
// registros: isso é responsabilidade da camada de consulta.
func (r Rule) Granted() bool {
	switch r.Kind {
	case RuleBool:
		return r.Allow
	case RuleScoped:
		return r.Scope != ScopeNone && r.Scope != ""
	}
	return false
}

type scopedRuleJSON struct {
	Scope          Scope    `json:"scope"`
	AllowedUserIDs []string `json:"allowedUserIds,omitempty"`
}

// MarshalJSON preserva o formato original da regra.
func (r Rule) MarshalJSON() ([]byte, error) {
	if r.Kind == RuleBool {
		return json.Marshal(r.Allow)
	}
	return json.Marshal(scopedRuleJSON{Scope: r.Scope, AllowedUserIDs: r.AllowedUserIDs})
}

// UnmarshalJSON aceita booleanos e objetos com escopo; qualquer outro formato
// resolve para a regra mais restritiva.
func (r *Rule) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "true" || trimmed == "false" {
		r.Kind = RuleBool
		r.Allow = trimmed == "true"
		r.Scope = ""
		r.AllowedUserIDs = nil
		return nil
	}

	var scoped scopedRuleJSON
	if err := json.Unmarshal(data, &scoped); err != nil {
		*r = BoolRule(false)
		return nil
	}
	r.Kind = RuleScoped
	r.Allow = false
	r.Scope = scoped.Scope
	r.AllowedUserIDs = scoped.AllowedUserIDs
	return nil
}

// Actions mapeia nome da ação para sua regra.
type Actions map[string]Rule

// RuleSet mapeia módulo para as regras de suas ações.
type RuleSet map[string]Actions

// Clone devolve cópia profunda do conjunto.
func (rs RuleSet) Clone() RuleSet {
	if rs == nil {
		return nil
	}
	out := make(RuleSet, len(rs))
	for module, actions := range rs {
		copied := make(Actions, len(actions))
		for action, rule := range actions {
			rule.AllowedUserIDs = append([]string(nil), rule.AllowedUserIDs...)
			copied[action] = rule
		}
		out[module] = copied
	}
	return out
}
