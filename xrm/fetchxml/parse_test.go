package fetchxml

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
)

func TestParseBasic(t *testing.T) {
	doc := `<fetch top="5">
  <entity name="account">
    <attribute name="name" />
    <attribute name="revenue" />
    <filter type="or">
      <condition attribute="name" operator="eq" value="Contoso" />
      <condition attribute="revenue" operator="gt" value="1000" />
    </filter>
    <order attribute="name" descending="true" />
  </entity>
</fetch>`

	ir, err := Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, "account", ir.Entity)
	assert.Equal(t, 5, ir.Top)
	assert.Equal(t, []string{"name", "revenue"}, ir.Columns.Columns)
	assert.False(t, ir.Columns.All)

	require.NotNil(t, ir.Filter)
	assert.Equal(t, query.Or, ir.Filter.Operator)
	require.Len(t, ir.Filter.Conditions, 2)
	assert.Equal(t, query.OpEqual, ir.Filter.Conditions[0].Operator)
	assert.Equal(t, []any{"Contoso"}, ir.Filter.Conditions[0].Values)
	assert.Equal(t, []any{"1000"}, ir.Filter.Conditions[1].Values)

	require.Len(t, ir.Orders, 1)
	assert.Equal(t, query.Order{Attribute: "name", Descending: true}, ir.Orders[0])
}

func TestParseAllAttributesAndValueList(t *testing.T) {
	doc := `<fetch>
  <entity name="contact">
    <all-attributes />
    <filter>
      <condition attribute="city" operator="in">
        <value>Seattle</value>
        <value>Portland</value>
      </condition>
    </filter>
  </entity>
</fetch>`

	ir, err := Parse(doc)
	require.NoError(t, err)

	assert.True(t, ir.Columns.All)
	require.NotNil(t, ir.Filter)
	assert.Equal(t, query.And, ir.Filter.Operator)
	require.Len(t, ir.Filter.Conditions, 1)
	assert.Equal(t, query.OpIn, ir.Filter.Conditions[0].Operator)
	assert.Equal(t, []any{"Seattle", "Portland"}, ir.Filter.Conditions[0].Values)
}

func TestParseLinkEntity(t *testing.T) {
	doc := `<fetch>
  <entity name="account">
    <attribute name="name" />
    <link-entity name="contact" from="parentcustomerid" to="accountid" link-type="outer">
      <attribute name="fullname" />
      <filter>
        <condition attribute="fullname" operator="like" value="A%" />
      </filter>
      <link-entity name="contact" from="contactid" to="managerid" alias="manager">
        <attribute name="fullname" />
      </link-entity>
    </link-entity>
  </entity>
</fetch>`

	ir, err := Parse(doc)
	require.NoError(t, err)

	require.Len(t, ir.Links, 1)
	l := ir.Links[0]
	assert.Equal(t, "contact", l.Name)
	assert.Equal(t, "parentcustomerid", l.From)
	assert.Equal(t, "accountid", l.To)
	assert.Equal(t, query.Outer, l.Type)
	assert.Equal(t, "contact", l.Alias, "missing alias defaults to the entity name")
	assert.Equal(t, []string{"fullname"}, l.Columns.Columns)
	require.NotNil(t, l.Filter)
	assert.Equal(t, query.OpLike, l.Filter.Conditions[0].Operator)

	require.Len(t, l.Links, 1)
	nested := l.Links[0]
	assert.Equal(t, "manager", nested.Alias)
	assert.Equal(t, query.Inner, nested.Type, "missing link-type defaults to inner")
}

func TestParseAggregate(t *testing.T) {
	doc := `<fetch aggregate="true">
  <entity name="account">
    <attribute name="city" groupby="true" />
    <attribute name="revenue" aggregate="sum" alias="total" />
    <attribute name="accountid" aggregate="count" alias="n" />
    <order alias="total" descending="true" />
  </entity>
</fetch>`

	ir, err := Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"city"}, ir.GroupBy)
	require.Len(t, ir.Aggregates, 2)
	assert.Equal(t, query.Aggregate{Attribute: "revenue", Fn: query.AggSum, Alias: "total"}, ir.Aggregates[0])
	assert.Equal(t, query.Aggregate{Attribute: "accountid", Fn: query.AggCount, Alias: "n"}, ir.Aggregates[1])
	require.Len(t, ir.Orders, 1)
	assert.Equal(t, "total", ir.Orders[0].Attribute)
	assert.True(t, ir.Orders[0].Descending)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		message string
	}{
		{
			name:    "not fetch",
			doc:     `<query><entity name="a" /></query>`,
			message: "must start with <fetch>",
		},
		{
			name:    "truncated document",
			doc:     `<fetch><entity name="a">`,
			message: "",
		},
		{
			name:    "entity without name",
			doc:     `<fetch><entity /></fetch>`,
			message: "entity requires a name",
		},
		{
			name:    "missing entity",
			doc:     `<fetch></fetch>`,
			message: "fetch requires an <entity>",
		},
		{
			name:    "unknown operator",
			doc:     `<fetch><entity name="a"><filter><condition attribute="x" operator="resembles" value="1" /></filter></entity></fetch>`,
			message: `unknown operator "resembles"`,
		},
		{
			name:    "column comparison",
			doc:     `<fetch><entity name="a"><filter><condition attribute="x" operator="eq" valueof="y" /></filter></entity></fetch>`,
			message: "column comparison is not supported",
		},
		{
			name:    "negative top",
			doc:     `<fetch top="-1"><entity name="a" /></fetch>`,
			message: "invalid top",
		},
		{
			name:    "aggregate without flag",
			doc:     `<fetch><entity name="a"><attribute name="x" aggregate="sum" alias="s" /></entity></fetch>`,
			message: `requires fetch aggregate="true"`,
		},
		{
			name:    "aggregate without alias",
			doc:     `<fetch aggregate="true"><entity name="a"><attribute name="x" aggregate="sum" /></entity></fetch>`,
			message: "requires an alias",
		},
		{
			name:    "missing operand",
			doc:     `<fetch><entity name="a"><filter><condition attribute="x" operator="eq" /></filter></entity></fetch>`,
			message: "requires 1 operand",
		},
		{
			name:    "stray element",
			doc:     `<fetch><entity name="a"><banana /></entity></fetch>`,
			message: "unexpected element <banana>",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.doc)
			require.Error(t, err)
			assert.True(t, errors.IsParse(err), "expected a parse error, got %v", err)

			var docErr *DocumentError
			require.True(t, errors.As(err, &docErr))
			assert.Greater(t, docErr.Line, 0)
			assert.Greater(t, docErr.Column, 0)
			if tc.message != "" {
				assert.Contains(t, docErr.Message, tc.message)
			}
		})
	}
}

func TestFrontEndsConvergeOnCanonicalForm(t *testing.T) {
	doc := `<fetch top="3">
  <entity name="account">
    <attribute name="name" />
    <filter>
      <condition attribute="employees" operator="ge" value="50" />
    </filter>
    <link-entity name="contact" from="parentcustomerid" to="accountid" alias="c">
      <attribute name="fullname" />
    </link-entity>
    <order attribute="name" descending="true" />
  </entity>
</fetch>`

	fromDoc, err := Parse(doc)
	require.NoError(t, err)

	qe := query.NewQueryExpression("account")
	qe.ColumnSet = query.Columns("name")
	qe.Criteria = &query.FilterExpression{
		Conditions: []query.ConditionExpression{
			{AttributeName: "employees", Operator: query.OpGreaterEqual, Values: []any{"50"}},
		},
	}
	qe.LinkEntities = []*query.LinkEntity{{
		LinkFromAttributeName: "accountid",
		LinkToEntityName:      "contact",
		LinkToAttributeName:   "parentcustomerid",
		EntityAlias:           "c",
		Columns:               query.Columns("fullname"),
	}}
	qe.Orders = []query.OrderExpression{{AttributeName: "name", Descending: true}}
	qe.TopCount = 3
	fromQE, err := qe.Translate()
	require.NoError(t, err)

	fromBuilder, err := query.NewBuilder("account").
		Select("name").
		Where(query.Attr("employees").GreaterOrEqual("50")).
		InnerJoin("contact", "accountid", "parentcustomerid", "c", "fullname").
		OrderByDesc("name").
		Top(3).
		Translate()
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(fromDoc, fromQE))
	assert.Empty(t, cmp.Diff(fromDoc, fromBuilder))
}

func TestParsePositionPointsAtConstruct(t *testing.T) {
	doc := "<fetch>\n  <entity name=\"a\">\n    <banana />\n  </entity>\n</fetch>"

	_, err := Parse(doc)
	require.Error(t, err)

	var docErr *DocumentError
	require.True(t, errors.As(err, &docErr))
	assert.Equal(t, 3, docErr.Line)
}
