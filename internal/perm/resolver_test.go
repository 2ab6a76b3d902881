package perm

import (
	"encoding/json"
	"reflect"
	"testing"
)

func corretorGrants() Grants {
	return Grants{
		RoleID:   "role-corretor",
		RoleName: "Corretor",
		Rules: RuleSet{
			"clients": Actions{
				"create": BoolRule(true),
				"view":   ScopedRule(ScopeAll),
				"edit":   ScopedRule(ScopeOwn),
				"delete": ScopedRule(ScopeNone),
			},
			"tasks": Actions{
				"view": ScopedRule(ScopeOwn),
			},
		},
	}
}

func TestResolveOverrideWinsAtLeaf(t *testing.T) {
	sub := &Subject{
		ID:       "u1",
		RoleID:   "role-corretor",
		RoleName: "Corretor",
		Overrides: RuleSet{
			"clients": Actions{
				"view": ScopedRule(ScopeOwn),
			},
		},
	}

	eff := Resolve(sub, []Grants{corretorGrants()})

	got := eff["clients"]["view"]
	if got.Kind != RuleScoped || got.Scope != ScopeOwn {
		t.Fatalf("override deveria vencer na folha: got %+v", got)
	}

	// Ações não mencionadas no override continuam herdadas do papel.
	if !eff["clients"]["create"].Granted() {
		t.Fatal("create herdado do papel deveria permanecer permitido")
	}
	if eff["clients"]["delete"].Granted() {
		t.Fatal("delete herdado do papel deveria permanecer negado")
	}
}

func TestResolveOverrideReplacesAcrossKinds(t *testing.T) {
	sub := &Subject{
		ID:       "u1",
		RoleID:   "role-corretor",
		RoleName: "Corretor",
		Overrides: RuleSet{
			"clients": Actions{
				// Papel define regra com escopo; override troca por booleano.
				"view": BoolRule(false),
				// Papel define booleano; override troca por escopo.
				"create": ScopedRule(ScopeSpecificUsers, "u9"),
			},
		},
	}

	eff := Resolve(sub, []Grants{corretorGrants()})

	if eff["clients"]["view"].Granted() {
		t.Fatal("override booleano false deveria negar view")
	}
	create := eff["clients"]["create"]
	if create.Kind != RuleScoped || create.Scope != ScopeSpecificUsers {
		t.Fatalf("override com escopo deveria substituir booleano: got %+v", create)
	}
}

func TestResolveInheritanceWithoutOverride(t *testing.T) {
	grants := corretorGrants()
	sub := &Subject{ID: "u1", RoleID: "role-corretor", RoleName: "Corretor"}

	eff := Resolve(sub, []Grants{grants})

	if !reflect.DeepEqual(eff["tasks"], grants.Rules["tasks"]) {
		t.Fatalf("módulo sem override deveria ser idêntico ao papel: got %+v", eff["tasks"])
	}
}

func TestResolveFailClosed(t *testing.T) {
	if got := Resolve(nil, []Grants{corretorGrants()}); len(got) != 0 {
		t.Fatalf("sujeito ausente deveria resolver vazio: %+v", got)
	}
	if got := Resolve(&Subject{ID: "u1", RoleID: "x"}, nil); len(got) != 0 {
		t.Fatalf("sem papéis deveria resolver vazio: %+v", got)
	}

	// roleId sem papel correspondente: base vazia, só overrides valem.
	sub := &Subject{
		ID:     "u1",
		RoleID: "inexistente",
		Overrides: RuleSet{
			"tasks": Actions{"create": BoolRule(true)},
		},
	}
	eff := Resolve(sub, []Grants{corretorGrants()})
	if !Can(sub, eff, "tasks", "create") {
		t.Fatal("override deveria valer mesmo sem papel base")
	}
	if Can(sub, eff, "clients", "view") {
		t.Fatal("sem papel base não há herança de clients")
	}
}

func TestCanDenyByDefault(t *testing.T) {
	sub := &Subject{ID: "u1", RoleID: "role-corretor", RoleName: "Corretor"}
	eff := Resolve(sub, []Grants{corretorGrants()})

	if Can(sub, eff, "contracts", "view") {
		t.Fatal("módulo ausente deveria negar")
	}
	if Can(sub, eff, "clients", "export") {
		t.Fatal("ação ausente deveria negar")
	}
	if Can(sub, eff, "clients", "delete") {
		t.Fatal("scope none deveria negar")
	}
	if !Can(sub, eff, "clients", "edit") {
		t.Fatal("scope own deveria permitir a ação em si")
	}
}

func TestCanAdminBypass(t *testing.T) {
	for _, name := range []string{"SuperAdmin", "CEO"} {
		sub := &Subject{ID: "u1", RoleID: "qualquer", RoleName: name}
		if !Can(sub, RuleSet{}, "qualquer-modulo", "qualquer-acao") {
			t.Fatalf("%s deveria ter bypass", name)
		}
		// Bypass vale mesmo com regra explícita negando.
		eff := RuleSet{"clients": Actions{"view": ScopedRule(ScopeNone)}}
		if !Can(sub, eff, "clients", "view") {
			t.Fatalf("%s deveria ignorar regra explícita", name)
		}
	}
}

func TestEffectiveScope(t *testing.T) {
	sub := &Subject{ID: "u1", RoleID: "role-corretor", RoleName: "Corretor"}
	eff := Resolve(sub, []Grants{corretorGrants()})

	if scope, _ := EffectiveScope(sub, eff, "clients", "view"); scope != ScopeAll {
		t.Fatalf("view deveria ter scope all: %s", scope)
	}
	if scope, _ := EffectiveScope(sub, eff, "clients", "create"); scope != ScopeAll {
		t.Fatalf("booleano permitido vale como all: %s", scope)
	}
	if scope, _ := EffectiveScope(sub, eff, "clients", "delete"); scope != ScopeNone {
		t.Fatalf("scope none deveria permanecer none: %s", scope)
	}
	if scope, _ := EffectiveScope(sub, eff, "financeiro", "view"); scope != ScopeNone {
		t.Fatalf("módulo ausente resolve para none: %s", scope)
	}

	admin := &Subject{ID: "u2", RoleName: "CEO"}
	if scope, _ := EffectiveScope(admin, RuleSet{}, "clients", "view"); scope != ScopeAll {
		t.Fatalf("bypass resolve para all: %s", scope)
	}
}

func TestRuleJSONRoundTrip(t *testing.T) {
	raw := []byte(`{
		"clients": {
			"create": true,
			"view": {"scope": "specific-users", "allowedUserIds": ["u7", "u8"]},
			"delete": {"scope": "none"}
		}
	}`)

	var rs RuleSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	create := rs["clients"]["create"]
	if create.Kind != RuleBool || !create.Allow {
		t.Fatalf("create deveria ser booleano true: %+v", create)
	}
	view := rs["clients"]["view"]
	if view.Scope != ScopeSpecificUsers || len(view.AllowedUserIDs) != 2 {
		t.Fatalf("view deveria carregar allowedUserIds: %+v", view)
	}

	encoded, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back RuleSet
	if err := json.Unmarshal(encoded, &back); err != nil {
		t.Fatalf("unmarshal de volta: %v", err)
	}
	if !reflect.DeepEqual(rs, back) {
		t.Fatalf("round-trip divergiu: %+v != %+v", rs, back)
	}
}

func TestResolveIsPure(t *testing.T) {
	grants := corretorGrants()
	sub := &Subject{
		ID:       "u1",
		RoleID:   "role-corretor",
		RoleName: "Corretor",
		Overrides: RuleSet{
			"clients": Actions{"view": ScopedRule(ScopeOwn)},
		},
	}

	first := Resolve(sub, []Grants{grants})
	second := Resolve(sub, []Grants{grants})
	if !reflect.DeepEqual(first, second) {
		t.Fatal("mesma entrada deveria produzir mesmo resultado")
	}

	// O resultado não pode compartilhar memória com a base do papel.
	first["clients"]["view"] = BoolRule(false)
	if grants.Rules["clients"]["view"].Kind == RuleBool {
		t.Fatal("mutação do resultado não pode vazar para o papel")
	}
}
