package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// Library wires every Wonder store over one kv database.
type Library struct {
	db  *kv.DB
	log logrus.FieldLogger

	Projects  *ProjectStore
	Settings  *SettingsStore
	Hierarchy *HierarchyStore
	Join      *JoinService

	documents map[types.HierarchyType]*DocumentStore
	relations map[types.RelationKind]*RelationStore
}

// Option configures Open.
type Option func(*options)

type options struct {
	log logrus.FieldLogger
}

// WithLogger sets the logger used by the library and its database.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// Open opens the library database described by cfg, migrating it to the
// current schema version.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*Library, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}

	schema := Schema()
	schema.Name = cfg.Name()
	db, err := kv.Open(ctx, cfg.DataDir, schema, kv.WithLogger(o.log))
	if err != nil {
		return nil, fmt.Errorf("opening library: %w", err)
	}
	return New(db, o.log), nil
}

// New wires the stores over an already open database.
func New(db *kv.DB, log logrus.FieldLogger) *Library {
	l := &Library{
		db:        db,
		log:       log,
		documents: make(map[types.HierarchyType]*DocumentStore, len(types.DocumentKinds)),
		relations: make(map[types.RelationKind]*RelationStore, len(RelationSpecs)),
	}
	for _, kind := range types.DocumentKinds {
		l.documents[kind] = &DocumentStore{
			db:    db,
			kind:  kind,
			store: documentStores[kind],
			log:   log.WithField("store", documentStores[kind]),
		}
	}
	for _, spec := range RelationSpecs {
		rs := &RelationStore{
			db:   db,
			spec: spec,
			from: l.documents[spec.FromKind],
			to:   l.documents[spec.ToKind],
			log:  log.WithField("store", spec.Store),
		}
		l.relations[spec.Kind] = rs
		for _, kind := range types.DocumentKinds {
			if spec.involves(kind) {
				l.documents[kind].relations = append(l.documents[kind].relations, rs)
			}
		}
	}

	l.Settings = &SettingsStore{db: db}
	l.Hierarchy = &HierarchyStore{db: db, documents: l.documents, log: log.WithField("store", HierarchyStoreName)}
	l.Projects = &ProjectStore{db: db, settings: l.Settings, hierarchy: l.Hierarchy, log: log.WithField("store", ProjectStoreName)}
	l.Join = &JoinService{db: db, documents: l.documents, relations: l.relations}
	return l
}

// Close closes the underlying database.
func (l *Library) Close() error {
	return l.db.Close()
}

// DB returns the underlying database.
func (l *Library) DB() *kv.DB { return l.db }

// Documents returns the document store for a leaf type.
func (l *Library) Documents(kind types.HierarchyType) (*DocumentStore, error) {
	s, ok := l.documents[kind]
	if !ok {
		return nil, fmt.Errorf("%q has no documents: %w", kind, types.ErrInvalidHierarchyType)
	}
	return s, nil
}

// Relations returns the relation store of kind.
func (l *Library) Relations(kind types.RelationKind) (*RelationStore, error) {
	s, ok := l.relations[kind]
	if !ok {
		return nil, fmt.Errorf("%q: %w", kind, types.ErrInvalidRelationType)
	}
	return s, nil
}

// generateID returns a UUID v7, falling back to v4.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// cleanName trims and NFC-normalizes a user supplied name.
func cleanName(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "", types.ErrInvalidName
	}
	return name, nil
}
