// Package xrm groups the entity record store and its query machinery.
//
// The subpackages layer as follows. types defines entities, typed
// values and metadata; metadata registers entity schemas; store holds
// records in memory with copy-on-boundary isolation. query is the
// canonical query form plus the two programmatic front ends, fetchxml
// the document front end. fiscal and hierarchy back the calendar and
// tree operators, engine evaluates canonical queries, and service ties
// everything together behind a Dataverse-shaped CRUD-and-query API.
//
// A minimal session:
//
//	svc := service.New()
//	svc.RegisterEntity(types.EntityMetadata{
//		LogicalName: "account",
//		Attributes:  map[string]types.AttributeType{"name": types.AttributeTypeString},
//	})
//	acct := types.NewEntity("account")
//	acct.Set("name", "Contoso")
//	id, _ := svc.Create(acct)
//	results, _ := svc.ExecuteFetch(`<fetch><entity name="account">
//		<attribute name="name" />
//	</entity></fetch>`)
package xrm
