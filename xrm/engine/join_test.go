package engine

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// aliasedValue unwraps the value stored under an "alias.attribute" key.
func aliasedValue(t *testing.T, e *types.Entity, key string) any {
	t.Helper()
	v, ok := e.Get(key)
	require.True(t, ok, "expected %s on %v", key, e.Attributes)
	av, ok := v.(types.AliasedValue)
	require.True(t, ok, "expected an aliased value under %s, got %T", key, v)
	return av.Value
}

func seedContacts(t *testing.T, ex *Executor) (contoso, fabrikam, northwind types.Identifier) {
	t.Helper()
	contoso = addRecord(t, ex, "account", map[string]any{"name": "Contoso"})
	fabrikam = addRecord(t, ex, "account", map[string]any{"name": "Fabrikam"})
	northwind = addRecord(t, ex, "account", map[string]any{"name": "Northwind"})

	addRecord(t, ex, "contact", map[string]any{
		"fullname": "Alice", "age": 30,
		"parentcustomerid": types.NewEntityReference("account", contoso),
	})
	addRecord(t, ex, "contact", map[string]any{
		"fullname": "Bob", "age": 40,
		"parentcustomerid": types.NewEntityReference("account", contoso),
	})
	addRecord(t, ex, "contact", map[string]any{
		"fullname": "Carol", "age": 50,
		"parentcustomerid": types.NewEntityReference("account", fabrikam),
	})
	return contoso, fabrikam, northwind
}

func contactLink() query.Link {
	return query.Link{
		Name:    "contact",
		From:    "parentcustomerid",
		To:      "accountid",
		Alias:   "c",
		Type:    query.Inner,
		Columns: query.Columns("fullname"),
	}
}

func TestInnerJoinMultipliesRows(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	seedContacts(t, ex)

	ir := &query.IR{
		Entity:  "account",
		Columns: query.Columns("name"),
		Links:   []query.Link{contactLink()},
		Orders:  []query.Order{{Attribute: "name"}, {Attribute: "c.fullname"}},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)

	// Contoso has two contacts, Fabrikam one, Northwind none.
	require.Len(t, results, 3)
	assert.Equal(t, []string{"Contoso", "Contoso", "Fabrikam"}, resultNames(t, results))
	assert.Equal(t, "Alice", aliasedValue(t, results[0], "c.fullname"))
	assert.Equal(t, "Bob", aliasedValue(t, results[1], "c.fullname"))
	assert.Equal(t, "Carol", aliasedValue(t, results[2], "c.fullname"))

	av, _ := results[0].Get("c.fullname")
	assert.Equal(t, types.AliasedValue{EntityLogicalName: "contact", Alias: "c", Value: "Alice"}, av)
}

func TestOuterJoinKeepsUnmatchedRows(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	seedContacts(t, ex)

	link := contactLink()
	link.Type = query.Outer
	ir := &query.IR{
		Entity:  "account",
		Columns: query.Columns("name"),
		Links:   []query.Link{link},
		Orders:  []query.Order{{Attribute: "name"}, {Attribute: "c.fullname"}},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 4)

	var northwindRow *types.Entity
	for _, r := range results {
		if n, _ := r.Get("name"); n == "Northwind" {
			northwindRow = r
		}
	}
	require.NotNil(t, northwindRow)
	_, hasContact := northwindRow.Get("c.fullname")
	assert.False(t, hasContact, "unmatched outer rows carry no joined columns")
}

func TestNestedLinkJoinsOnPrimaryKey(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	contoso := addRecord(t, ex, "account", map[string]any{"name": "Contoso"})
	manager := addRecord(t, ex, "contact", map[string]any{"fullname": "Mallory"})
	addRecord(t, ex, "contact", map[string]any{
		"fullname":         "Alice",
		"parentcustomerid": types.NewEntityReference("account", contoso),
		"managerid":        types.NewEntityReference("contact", manager),
	})

	link := contactLink()
	link.Links = []query.Link{{
		Name:    "contact",
		From:    "contactid",
		To:      "managerid",
		Alias:   "m",
		Type:    query.Inner,
		Columns: query.Columns("fullname"),
	}}
	ir := &query.IR{
		Entity:  "account",
		Columns: query.Columns("name"),
		Links:   []query.Link{link},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Alice", aliasedValue(t, results[0], "c.fullname"))
	assert.Equal(t, "Mallory", aliasedValue(t, results[0], "m.fullname"))
}

func TestLinkFilterApplies(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	seedContacts(t, ex)

	link := contactLink()
	link.Filter = &query.Filter{Operator: query.And, Conditions: []query.Condition{
		cond("fullname", query.OpEqual, "Alice"),
	}}
	ir := &query.IR{
		Entity:  "account",
		Columns: query.Columns("name"),
		Links:   []query.Link{link},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"Contoso"}, resultNames(t, results))
}

func TestRootFilterOnLinkedColumn(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	seedContacts(t, ex)

	ir := &query.IR{
		Entity:  "account",
		Columns: query.Columns("name"),
		Links:   []query.Link{contactLink()},
		Filter: &query.Filter{Operator: query.And, Conditions: []query.Condition{
			{EntityAlias: "c", Attribute: "age", Operator: query.OpGreaterEqual, Values: []any{45}},
		}},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"Fabrikam"}, resultNames(t, results))
}

func TestJoinRejectsUnknownAttributes(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	seedContacts(t, ex)

	link := contactLink()
	link.From = "nosuchattribute"
	ir := &query.IR{Entity: "account", Links: []query.Link{link}}
	_, err := ex.Execute(ir)
	assert.True(t, errors.IsAttributeNotFound(err))
}

func TestJoinResultsOrderByLinkedColumn(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	seedContacts(t, ex)

	ir := &query.IR{
		Entity:  "account",
		Columns: query.Columns("name"),
		Links:   []query.Link{contactLink()},
		Orders:  []query.Order{{Attribute: "c.fullname", Descending: true}},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)

	var contacts []string
	for _, r := range results {
		contacts = append(contacts, aliasedValue(t, r, "c.fullname").(string))
	}
	assert.Equal(t, []string{"Carol", "Bob", "Alice"}, contacts)

	sorted := append([]string(nil), contacts...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	assert.Equal(t, sorted, contacts)
}
