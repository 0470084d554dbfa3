// Package service is the organization-facing surface: metadata
// registration, record CRUD and the three query entry points, all
// backed by one in-memory store and one executor.
package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/engine"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/metadata"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/store"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// Service bundles a store, a metadata registry and an executor behind
// a Dataverse-shaped API. The zero value is not usable; construct with
// New or NewWithOptions.
type Service struct {
	store    *store.Store
	registry *metadata.Registry
	executor *engine.Executor
	logger   *zap.SugaredLogger
}

// New builds a Service with default engine options.
func New() *Service {
	return NewWithOptions(engine.Options{})
}

// NewWithOptions builds a Service with explicit engine options. Tests
// use this to inject a mock clock and a fiscal calendar.
func NewWithOptions(opts engine.Options) *Service {
	s := store.New()
	r := metadata.NewRegistry()
	return &Service{
		store:    s,
		registry: r,
		executor: engine.NewWithOptions(s, r, opts),
		logger:   opts.Logger,
	}
}

// Store exposes the backing store for setup and inspection.
func (s *Service) Store() *store.Store { return s.store }

// Registry exposes the metadata registry.
func (s *Service) Registry() *metadata.Registry { return s.registry }

// Executor exposes the query executor for IR- and builder-level access.
func (s *Service) Executor() *engine.Executor { return s.executor }

// RegisterEntity registers or replaces entity metadata.
func (s *Service) RegisterEntity(m types.EntityMetadata) error {
	return s.registry.Register(m)
}

// Create stores a new record, assigning an identifier when the caller
// left it zero. Every attribute must be declared and well-typed.
func (s *Service) Create(e *types.Entity) (types.Identifier, error) {
	if e == nil {
		return uuid.Nil, errors.New("nil entity")
	}
	if err := s.validate(e); err != nil {
		return uuid.Nil, err
	}
	rec := e.Clone()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	} else if _, exists := s.store.Get(rec.LogicalName, rec.ID); exists {
		return uuid.Nil, errors.Newf("%s %s already exists", rec.LogicalName, rec.ID)
	}
	if err := s.store.Put(rec); err != nil {
		return uuid.Nil, err
	}
	if s.logger != nil {
		s.logger.Debugw("created record", "entity", rec.LogicalName, "id", rec.ID)
	}
	return rec.ID, nil
}

// Update merges the given attributes into an existing record.
// Attributes absent from the update keep their stored values; an
// explicit nil clears one.
func (s *Service) Update(e *types.Entity) error {
	if e == nil {
		return errors.New("nil entity")
	}
	if err := s.validate(e); err != nil {
		return err
	}
	existing, ok := s.store.Get(e.LogicalName, e.ID)
	if !ok {
		return errors.NewNotFoundf("%s %s", e.LogicalName, e.ID)
	}
	for name, v := range e.Attributes {
		existing.Set(name, types.CloneValue(v))
	}
	if err := s.store.Put(existing); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debugw("updated record", "entity", e.LogicalName, "id", e.ID)
	}
	return nil
}

// Delete removes a record.
func (s *Service) Delete(logicalName string, id types.Identifier) error {
	if !s.store.Remove(logicalName, id) {
		return errors.NewNotFoundf("%s %s", logicalName, id)
	}
	if s.logger != nil {
		s.logger.Debugw("deleted record", "entity", logicalName, "id", id)
	}
	return nil
}

// Retrieve returns one record projected to the given column set. The
// identifier is always carried.
func (s *Service) Retrieve(logicalName string, id types.Identifier, columns query.ColumnSet) (*types.Entity, error) {
	if _, err := s.registry.Metadata(logicalName); err != nil {
		return nil, err
	}
	rec, ok := s.store.Get(logicalName, id)
	if !ok {
		return nil, errors.NewNotFoundf("%s %s", logicalName, id)
	}
	if columns.All {
		return rec, nil
	}
	out := types.NewEntity(logicalName)
	out.ID = rec.ID
	for _, name := range columns.Columns {
		if _, err := s.registry.AttributeType(logicalName, name); err != nil {
			return nil, err
		}
		if v, ok := rec.Get(name); ok {
			out.Set(name, types.CloneValue(v))
		}
	}
	return out, nil
}

// RetrieveMultiple evaluates a structured query.
func (s *Service) RetrieveMultiple(q *query.QueryExpression) ([]*types.Entity, error) {
	return s.executor.ExecuteQuery(q)
}

// ExecuteFetch evaluates a FetchXML document.
func (s *Service) ExecuteFetch(doc string) ([]*types.Entity, error) {
	return s.executor.ExecuteFetch(doc)
}

// validate checks a record against its registered metadata: the entity
// must be registered, every attribute declared and every value either
// nil or assignable to the declared type.
func (s *Service) validate(e *types.Entity) error {
	md, err := s.registry.Metadata(e.LogicalName)
	if err != nil {
		return err
	}
	for name, v := range e.Attributes {
		at, declared := md.Attributes[name]
		if !declared {
			return errors.NewAttributeNotFoundf("%s.%s", e.LogicalName, name)
		}
		if v == nil {
			continue
		}
		if err := checkValue(v, at); err != nil {
			return errors.Wrapf(err, "%s.%s", e.LogicalName, name)
		}
	}
	return nil
}

// checkValue accepts the natural Go representations of each attribute
// type. Unlike query operands, stored values are never string-coerced.
func checkValue(v any, at types.AttributeType) error {
	ok := false
	switch at {
	case types.AttributeTypeString:
		_, ok = v.(string)
	case types.AttributeTypeInteger:
		switch v.(type) {
		case int, int32, int64:
			ok = true
		}
	case types.AttributeTypeFloat:
		switch v.(type) {
		case float32, float64:
			ok = true
		}
	case types.AttributeTypeBoolean:
		_, ok = v.(bool)
	case types.AttributeTypeDateTime:
		_, ok = v.(time.Time)
	case types.AttributeTypeOptionSet:
		switch v.(type) {
		case types.OptionSetValue, int, int32, int64:
			ok = true
		}
	case types.AttributeTypeMoney:
		_, ok = v.(types.Money)
	case types.AttributeTypeLookup:
		switch v.(type) {
		case types.EntityReference, *types.EntityReference, types.Identifier:
			ok = true
		}
	}
	if !ok {
		return errors.NewTypeMismatchf("value of type %T is not a %s", v, at)
	}
	return nil
}
