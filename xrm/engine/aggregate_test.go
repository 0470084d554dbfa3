package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

func TestGlobalAggregates(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	addRecord(t, ex, "account", map[string]any{"name": "a", "employees": 10})
	addRecord(t, ex, "account", map[string]any{"name": "b", "employees": 30})
	addRecord(t, ex, "account", map[string]any{"name": "c"})

	ir := &query.IR{
		Entity: "account",
		Aggregates: []query.Aggregate{
			{Fn: query.AggCount, Alias: "rows"},
			{Attribute: "employees", Fn: query.AggCountColumn, Alias: "staffed"},
			{Attribute: "employees", Fn: query.AggSum, Alias: "total"},
			{Attribute: "employees", Fn: query.AggAvg, Alias: "mean"},
			{Attribute: "employees", Fn: query.AggMin, Alias: "least"},
			{Attribute: "employees", Fn: query.AggMax, Alias: "most"},
		},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, 3, aliasedValue(t, got, "rows"))
	assert.Equal(t, 2, aliasedValue(t, got, "staffed"), "countcolumn skips null values")
	assert.Equal(t, int64(40), aliasedValue(t, got, "total"))
	assert.Equal(t, 20.0, aliasedValue(t, got, "mean"))
	assert.Equal(t, int64(10), aliasedValue(t, got, "least"))
	assert.Equal(t, int64(30), aliasedValue(t, got, "most"))
}

func TestMoneyAggregatesKeepDecimalPrecision(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	addRecord(t, ex, "account", map[string]any{"revenue": types.NewMoney(100.10)})
	addRecord(t, ex, "account", map[string]any{"revenue": types.NewMoney(200.20)})

	ir := &query.IR{
		Entity: "account",
		Aggregates: []query.Aggregate{
			{Attribute: "revenue", Fn: query.AggSum, Alias: "total"},
			{Attribute: "revenue", Fn: query.AggAvg, Alias: "mean"},
		},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 1)

	total := aliasedValue(t, results[0], "total").(types.Money)
	assert.True(t, total.Amount.Equal(decimal.RequireFromString("300.3")), "got %s", total.Amount)
	mean := aliasedValue(t, results[0], "mean").(types.Money)
	assert.True(t, mean.Amount.Equal(decimal.RequireFromString("150.15")), "got %s", mean.Amount)
}

func TestGroupByFirstSeenOrder(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	addRecord(t, ex, "account", map[string]any{"name": "a", "city": "Seattle"})
	addRecord(t, ex, "account", map[string]any{"name": "b", "city": "Portland"})
	addRecord(t, ex, "account", map[string]any{"name": "c", "city": "seattle"})
	addRecord(t, ex, "account", map[string]any{"name": "d"})

	ir := &query.IR{
		Entity:  "account",
		GroupBy: []string{"city"},
		Aggregates: []query.Aggregate{
			{Fn: query.AggCount, Alias: "n"},
		},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 3, "grouping folds case like equality, nulls form one group")

	assert.Equal(t, "Seattle", aliasedValue(t, results[0], "city"), "the group shows the first-seen spelling")
	assert.Equal(t, 2, aliasedValue(t, results[0], "n"))
	assert.Equal(t, "Portland", aliasedValue(t, results[1], "city"))
	assert.Equal(t, 1, aliasedValue(t, results[1], "n"))
	assert.Nil(t, aliasedValue(t, results[2], "city"))
	assert.Equal(t, 1, aliasedValue(t, results[2], "n"))
}

func TestAggregateOverNoRows(t *testing.T) {
	ex := newTestExecutor(t, Options{})

	ir := &query.IR{
		Entity: "account",
		Aggregates: []query.Aggregate{
			{Fn: query.AggCount, Alias: "n"},
			{Attribute: "employees", Fn: query.AggSum, Alias: "total"},
			{Attribute: "employees", Fn: query.AggAvg, Alias: "mean"},
			{Attribute: "employees", Fn: query.AggMin, Alias: "least"},
		},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 1, "an ungrouped aggregate always yields one row")

	got := results[0]
	assert.Equal(t, 0, aliasedValue(t, got, "n"))
	assert.Equal(t, int64(0), aliasedValue(t, got, "total"), "sum over nothing is zero")
	assert.Nil(t, aliasedValue(t, got, "mean"), "avg over nothing is null")
	assert.Nil(t, aliasedValue(t, got, "least"))
}

func TestGroupCardinalityCap(t *testing.T) {
	ex := newTestExecutor(t, Options{MaxGroupCardinality: 2})
	for _, city := range []string{"Seattle", "Portland", "Spokane"} {
		addRecord(t, ex, "account", map[string]any{"city": city})
	}

	ir := &query.IR{
		Entity:     "account",
		GroupBy:    []string{"city"},
		Aggregates: []query.Aggregate{{Fn: query.AggCount, Alias: "n"}},
	}
	_, err := ex.Execute(ir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct groups")
}

func TestOrderByAggregateAlias(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	addRecord(t, ex, "account", map[string]any{"city": "Seattle", "employees": 10})
	addRecord(t, ex, "account", map[string]any{"city": "Portland", "employees": 70})
	addRecord(t, ex, "account", map[string]any{"city": "Seattle", "employees": 20})

	ir := &query.IR{
		Entity:  "account",
		GroupBy: []string{"city"},
		Aggregates: []query.Aggregate{
			{Attribute: "employees", Fn: query.AggSum, Alias: "total"},
		},
		Orders: []query.Order{{Attribute: "total", Descending: true}},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Portland", aliasedValue(t, results[0], "city"))
	assert.Equal(t, int64(70), aliasedValue(t, results[0], "total"))
	assert.Equal(t, "Seattle", aliasedValue(t, results[1], "city"))
	assert.Equal(t, int64(30), aliasedValue(t, results[1], "total"))
}

func TestOrderByUnknownAggregateKeyRejected(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	addRecord(t, ex, "account", map[string]any{"city": "Seattle", "employees": 10})

	ir := &query.IR{
		Entity:  "account",
		GroupBy: []string{"city"},
		Aggregates: []query.Aggregate{
			{Attribute: "employees", Fn: query.AggSum, Alias: "total"},
		},
		// "employees" is a declared attribute but not an output key of
		// this aggregation, so ordering by it is an error.
		Orders: []query.Order{{Attribute: "employees"}},
	}
	_, err := ex.Execute(ir)
	assert.True(t, errors.IsAttributeNotFound(err))
}

func TestAggregateOverLinkedColumn(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	seedContacts(t, ex)

	ir := &query.IR{
		Entity:  "account",
		Links:   []query.Link{contactLink()},
		GroupBy: []string{"name"},
		Aggregates: []query.Aggregate{
			{Attribute: "c.age", Fn: query.AggSum, Alias: "ages"},
		},
		Orders: []query.Order{{Attribute: "name"}},
	}
	results, err := ex.Execute(ir)
	require.NoError(t, err)
	require.Len(t, results, 2, "inner join drops the contactless account")

	assert.Equal(t, "Contoso", aliasedValue(t, results[0], "name"))
	assert.Equal(t, int64(70), aliasedValue(t, results[0], "ages"))
	assert.Equal(t, "Fabrikam", aliasedValue(t, results[1], "name"))
	assert.Equal(t, int64(50), aliasedValue(t, results[1], "ages"))
}

func TestAggregateViaFetchXML(t *testing.T) {
	ex := newTestExecutor(t, Options{})
	addRecord(t, ex, "account", map[string]any{"city": "Seattle", "employees": 10})
	addRecord(t, ex, "account", map[string]any{"city": "Seattle", "employees": 20})

	results, err := ex.ExecuteFetch(`<fetch aggregate="true">
  <entity name="account">
    <attribute name="city" groupby="true" />
    <attribute name="employees" aggregate="sum" alias="total" />
  </entity>
</fetch>`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Seattle", aliasedValue(t, results[0], "city"))
	assert.Equal(t, int64(20+10), aliasedValue(t, results[0], "total"))
}
