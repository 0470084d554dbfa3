// Package fetchxml parses FetchXML documents into the canonical query
// form executed by the engine. The supported grammar covers fetch,
// entity, attribute, all-attributes, filter, condition, link-entity and
// order elements. Condition operands stay strings here; the engine
// coerces them against the attribute's declared type.
package fetchxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
)

// DocumentError reports a malformed or unsupported document together
// with the position of the offending construct.
type DocumentError struct {
	Line    int
	Column  int
	Message string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("fetchxml: line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Unwrap ties every document error to the parse sentinel, so callers
// can test with errors.IsParse.
func (e *DocumentError) Unwrap() error { return errors.ErrParse }

// Parse parses one FetchXML document. The returned query is normalized
// and validated.
func Parse(doc string) (*query.IR, error) {
	p := &parser{
		dec: xml.NewDecoder(strings.NewReader(doc)),
		doc: doc,
	}
	ir, err := p.parseFetch()
	if err != nil {
		return nil, err
	}
	ir.Normalize()
	if err := ir.Validate(); err != nil {
		return nil, err
	}
	return ir, nil
}

type parser struct {
	dec       *xml.Decoder
	doc       string
	ir        *query.IR
	aggregate bool
}

// pos converts the decoder's byte offset into a line and column.
func (p *parser) pos() (line, col int) {
	off := int(p.dec.InputOffset())
	if off > len(p.doc) {
		off = len(p.doc)
	}
	line, col = 1, 1
	for _, r := range p.doc[:off] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

func (p *parser) errf(format string, args ...any) error {
	line, col := p.pos()
	return &DocumentError{Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

// next returns the next token, folding XML syntax errors and premature
// EOF into positioned document errors.
func (p *parser) next() (xml.Token, error) {
	tok, err := p.dec.Token()
	if err == io.EOF {
		return nil, p.errf("unexpected end of document")
	}
	if err != nil {
		if syn, ok := err.(*xml.SyntaxError); ok {
			return nil, &DocumentError{Line: syn.Line, Column: 1, Message: syn.Msg}
		}
		return nil, p.errf("%v", err)
	}
	return tok, nil
}

// nextElement skips character data, comments and directives, returning
// the next start or end element.
func (p *parser) nextElement() (xml.Token, error) {
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement, xml.EndElement:
			return tok, nil
		case xml.CharData:
			if strings.TrimSpace(string(t)) != "" {
				return nil, p.errf("unexpected text %q", strings.TrimSpace(string(t)))
			}
		}
	}
}

// text consumes an element's character data up to its end tag.
func (p *parser) text() (string, error) {
	var b strings.Builder
	for {
		tok, err := p.next()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			return b.String(), nil
		case xml.StartElement:
			return "", p.errf("unexpected element <%s>", t.Name.Local)
		}
	}
}

// skip consumes an element with no meaningful children.
func (p *parser) skip() error {
	return p.dec.Skip()
}

func attrs(se xml.StartElement) map[string]string {
	m := make(map[string]string, len(se.Attr))
	for _, a := range se.Attr {
		m[a.Name.Local] = a.Value
	}
	return m
}

func (p *parser) parseFetch() (*query.IR, error) {
	tok, err := p.nextElement()
	if err != nil {
		return nil, err
	}
	se, ok := tok.(xml.StartElement)
	if !ok || se.Name.Local != "fetch" {
		return nil, p.errf("document must start with <fetch>")
	}

	p.ir = &query.IR{}
	for name, value := range attrs(se) {
		switch name {
		case "aggregate":
			b, err := parseFlag(value)
			if err != nil {
				return nil, p.errf("invalid aggregate attribute %q", value)
			}
			p.aggregate = b
		case "top":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, p.errf("invalid top attribute %q", value)
			}
			p.ir.Top = n
		case "version", "mapping", "distinct", "output-format":
			// Accepted for compatibility, not interpreted.
		default:
			return nil, p.errf("unsupported fetch attribute %q", name)
		}
	}

	for {
		tok, err := p.nextElement()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "entity" {
				return nil, p.errf("unexpected element <%s> inside <fetch>", t.Name.Local)
			}
			if p.ir.Entity != "" {
				return nil, p.errf("fetch allows a single <entity>")
			}
			if err := p.parseEntity(t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if p.ir.Entity == "" {
				return nil, p.errf("fetch requires an <entity>")
			}
			return p.ir, nil
		}
	}
}

func (p *parser) parseEntity(se xml.StartElement) error {
	a := attrs(se)
	name := a["name"]
	if name == "" {
		return p.errf("entity requires a name")
	}
	p.ir.Entity = name

	var filters []*query.Filter
	for {
		tok, err := p.nextElement()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "attribute":
				if err := p.parseAttribute(t, "", &p.ir.Columns); err != nil {
					return err
				}
			case "all-attributes":
				p.ir.Columns.All = true
				if err := p.skip(); err != nil {
					return err
				}
			case "filter":
				f, err := p.parseFilter(t)
				if err != nil {
					return err
				}
				filters = append(filters, f)
			case "link-entity":
				l, err := p.parseLink(t)
				if err != nil {
					return err
				}
				p.ir.Links = append(p.ir.Links, *l)
			case "order":
				if err := p.parseOrder(t); err != nil {
					return err
				}
			default:
				return p.errf("unexpected element <%s> inside <entity>", t.Name.Local)
			}
		case xml.EndElement:
			p.ir.Filter = combineFilters(filters)
			return nil
		}
	}
}

// parseAttribute handles plain columns, aggregate columns and group-by
// keys. linkAlias is empty in the root entity and names the enclosing
// link otherwise; aggregate targets under a link use "alias.attribute".
func (p *parser) parseAttribute(se xml.StartElement, linkAlias string, cols *query.ColumnSet) error {
	a := attrs(se)
	name := a["name"]
	if name == "" {
		return p.errf("attribute requires a name")
	}
	if err := p.skip(); err != nil {
		return err
	}

	target := name
	if linkAlias != "" {
		target = linkAlias + "." + name
	}

	if fn, ok := a["aggregate"]; ok {
		if !p.aggregate {
			return p.errf("aggregate attribute %q requires fetch aggregate=\"true\"", name)
		}
		alias := a["alias"]
		if alias == "" {
			return p.errf("aggregate attribute %q requires an alias", name)
		}
		p.ir.Aggregates = append(p.ir.Aggregates, query.Aggregate{
			Attribute: target,
			Fn:        query.AggregateFn(fn),
			Alias:     alias,
		})
		return nil
	}
	if flag, ok := a["groupby"]; ok {
		b, err := parseFlag(flag)
		if err != nil {
			return p.errf("invalid groupby attribute %q", flag)
		}
		if b {
			if !p.aggregate {
				return p.errf("groupby attribute %q requires fetch aggregate=\"true\"", name)
			}
			p.ir.GroupBy = append(p.ir.GroupBy, target)
			return nil
		}
	}
	cols.Columns = append(cols.Columns, name)
	return nil
}

func (p *parser) parseFilter(se xml.StartElement) (*query.Filter, error) {
	a := attrs(se)
	f := &query.Filter{}
	switch a["type"] {
	case "", "and":
		f.Operator = query.And
	case "or":
		f.Operator = query.Or
	default:
		return nil, p.errf("unknown filter type %q", a["type"])
	}

	for {
		tok, err := p.nextElement()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "condition":
				c, err := p.parseCondition(t)
				if err != nil {
					return nil, err
				}
				f.Conditions = append(f.Conditions, *c)
			case "filter":
				child, err := p.parseFilter(t)
				if err != nil {
					return nil, err
				}
				f.Filters = append(f.Filters, child)
			default:
				return nil, p.errf("unexpected element <%s> inside <filter>", t.Name.Local)
			}
		case xml.EndElement:
			return f, nil
		}
	}
}

func (p *parser) parseCondition(se xml.StartElement) (*query.Condition, error) {
	a := attrs(se)
	if _, ok := a["valueof"]; ok {
		return nil, p.errf("column comparison is not supported")
	}
	c := &query.Condition{
		EntityAlias: a["entityname"],
		Attribute:   a["attribute"],
		Operator:    query.Operator(a["operator"]),
	}
	if c.Attribute == "" {
		return nil, p.errf("condition requires an attribute")
	}
	if !c.Operator.Valid() {
		return nil, p.errf("unknown operator %q", a["operator"])
	}
	if v, ok := a["value"]; ok {
		c.Values = append(c.Values, v)
	}

	for {
		tok, err := p.nextElement()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "value" {
				return nil, p.errf("unexpected element <%s> inside <condition>", t.Name.Local)
			}
			v, err := p.text()
			if err != nil {
				return nil, err
			}
			c.Values = append(c.Values, v)
		case xml.EndElement:
			if err := c.Operator.ValidateOperands(c.Values); err != nil {
				return nil, p.errf("%v", err)
			}
			return c, nil
		}
	}
}

func (p *parser) parseLink(se xml.StartElement) (*query.Link, error) {
	a := attrs(se)
	l := &query.Link{
		Name:  a["name"],
		From:  a["from"],
		To:    a["to"],
		Alias: a["alias"],
	}
	if l.Name == "" || l.From == "" || l.To == "" {
		return nil, p.errf("link-entity requires name, from and to")
	}
	switch a["link-type"] {
	case "":
		// Normalize fills the inner default.
	case "inner":
		l.Type = query.Inner
	case "outer":
		l.Type = query.Outer
	default:
		return nil, p.errf("unknown link-type %q", a["link-type"])
	}

	var filters []*query.Filter
	for {
		tok, err := p.nextElement()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "attribute":
				if l.Alias == "" && (hasAttr(t, "aggregate") || hasAttr(t, "groupby")) {
					return nil, p.errf("link-entity requires an alias for aggregate attributes")
				}
				if err := p.parseAttribute(t, l.Alias, &l.Columns); err != nil {
					return nil, err
				}
			case "all-attributes":
				l.Columns.All = true
				if err := p.skip(); err != nil {
					return nil, err
				}
			case "filter":
				f, err := p.parseFilter(t)
				if err != nil {
					return nil, err
				}
				filters = append(filters, f)
			case "link-entity":
				child, err := p.parseLink(t)
				if err != nil {
					return nil, err
				}
				l.Links = append(l.Links, *child)
			default:
				return nil, p.errf("unexpected element <%s> inside <link-entity>", t.Name.Local)
			}
		case xml.EndElement:
			l.Filter = combineFilters(filters)
			return l, nil
		}
	}
}

func (p *parser) parseOrder(se xml.StartElement) error {
	a := attrs(se)
	target := a["attribute"]
	if target == "" {
		target = a["alias"]
	}
	if target == "" {
		return p.errf("order requires an attribute or alias")
	}
	o := query.Order{Attribute: target}
	if v, ok := a["descending"]; ok {
		b, err := parseFlag(v)
		if err != nil {
			return p.errf("invalid descending attribute %q", v)
		}
		o.Descending = b
	}
	p.ir.Orders = append(p.ir.Orders, o)
	return p.skip()
}

func hasAttr(se xml.StartElement, name string) bool {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return true
		}
	}
	return false
}

func parseFlag(v string) (bool, error) {
	switch v {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, errors.Newf("not a boolean: %q", v)
}

func combineFilters(filters []*query.Filter) *query.Filter {
	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	default:
		return &query.Filter{Operator: query.And, Filters: filters}
	}
}
