package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/desertthunder/crux/internal/idfield"
	"github.com/desertthunder/crux/internal/models"
	"github.com/desertthunder/crux/internal/query"
	"github.com/desertthunder/crux/internal/shared"
)

// GormDialect selects the database behind a GORM connection.
type GormDialect string

const (
	GormSQLite   GormDialect = "sqlite"
	GormPostgres GormDialect = "postgres"
)

// GormConfig describes a GORM connection.
type GormConfig struct {
	Dialect GormDialect
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// OpenGorm connects to the configured database and auto-migrates the given models.
func OpenGorm(cfg GormConfig, migrate ...any) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Dialect {
	case GormSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		if cfg.Path == ":memory:" {
			dialector = sqlite.Open(cfg.Path)
			break
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL for concurrent readers, and wait up to 5 seconds on a locked database.
		dialector = sqlite.Open(cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case GormPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database dialect: %q", cfg.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}
	return db, nil
}

type gormTxKey struct{}

// GormTransactor implements crud.Transactor with GORM transactions.
type GormTransactor struct {
	db *gorm.DB
}

// NewGormTransactor creates a GormTransactor for db.
func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// WithTransaction runs work in a transaction carried by ctx. Nested calls join the outer one.
func (t *GormTransactor) WithTransaction(ctx context.Context, work func(context.Context) error) error {
	if _, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return work(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return work(context.WithValue(ctx, gormTxKey{}, tx))
	})
}

// GormRepository implements crud.Repository for any GORM model. E must be a pointer to the
// model struct.
//
// Models with a gorm.DeletedAt field are soft-deleted by GORM and hidden from every read.
type GormRepository[E any, ID comparable] struct {
	db           *gorm.DB
	schema       *query.Schema[E]
	field        idfield.Field
	defaultOrder string
}

// NewGormRepository creates a repository over db. Unsorted reads are ordered by defaultOrder,
// a SQL ORDER BY list, or by the primary key when it is empty.
func NewGormRepository[E any, ID comparable](db *gorm.DB, schema *query.Schema[E], defaultOrder string) (*GormRepository[E, ID], error) {
	if t := reflect.TypeFor[E](); t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("gorm repository needs a pointer to a struct, got %s", t)
	}
	field, err := idfield.For[E]()
	if err != nil {
		return nil, err
	}
	if defaultOrder == "" {
		defaultOrder = field.Column + " ASC"
	}
	return &GormRepository[E, ID]{db: db, schema: schema, field: field, defaultOrder: defaultOrder}, nil
}

// conn returns the transaction in ctx, or a fresh session on the repository's database.
func (r *GormRepository[E, ID]) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *GormRepository[E, ID]) newModel() E {
	return reflect.New(reflect.TypeFor[E]().Elem()).Interface().(E)
}

func (r *GormRepository[E, ID]) FindByID(ctx context.Context, id ID) (E, bool, error) {
	var zero E
	entity := r.newModel()
	err := r.conn(ctx).Where(r.field.Column+" = ?", id).First(entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return entity, true, nil
}

// FindByIDs returns the stored entities among ids, in the order the ids were given.
func (r *GormRepository[E, ID]) FindByIDs(ctx context.Context, ids []ID) ([]E, error) {
	if len(ids) == 0 {
		return []E{}, nil
	}

	var found []E
	if err := r.conn(ctx).Where(r.field.Column+" IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[ID]E, len(found))
	for _, e := range found {
		v, err := r.field.Get(e)
		if err != nil {
			return nil, err
		}
		if id, ok := v.(ID); ok {
			byID[id] = e
		}
	}
	out := make([]E, 0, len(found))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *GormRepository[E, ID]) PageAll(ctx context.Context, p models.Pagination, s models.Sort) (models.Page[E], error) {
	return r.page(ctx, "", "", p, s)
}

func (r *GormRepository[E, ID]) PageSearch(ctx context.Context, search string, p models.Pagination, s models.Sort) (models.Page[E], error) {
	return r.page(ctx, search, "", p, s)
}

func (r *GormRepository[E, ID]) PageSearchQuery(ctx context.Context, search, filter string, p models.Pagination, s models.Sort) (models.Page[E], error) {
	return r.page(ctx, search, filter, p, s)
}

func (r *GormRepository[E, ID]) CountAll(ctx context.Context) (int64, error) {
	return r.count(ctx, "", "")
}

func (r *GormRepository[E, ID]) CountSearch(ctx context.Context, search string) (int64, error) {
	return r.count(ctx, search, "")
}

func (r *GormRepository[E, ID]) CountSearchQuery(ctx context.Context, search, filter string) (int64, error) {
	return r.count(ctx, search, filter)
}

func (r *GormRepository[E, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(r.newModel()).Where(r.field.Column+" = ?", id).Limit(1).Count(&n).Error
	return n > 0, err
}

// Persist creates entity, generating a UUID identifier when a string identifier is empty.
func (r *GormRepository[E, ID]) Persist(ctx context.Context, entity E) (E, error) {
	var zero E
	empty, err := r.field.IsZero(entity)
	if err != nil {
		return zero, err
	}
	if empty && r.field.Type.Kind() == reflect.String {
		id := reflect.ValueOf(shared.GenerateID()).Convert(r.field.Type).Interface()
		if err := r.field.Set(entity, id); err != nil {
			return zero, err
		}
	}

	if err := r.conn(ctx).Create(entity).Error; err != nil {
		return zero, wrapDuplicate(err)
	}
	return entity, nil
}

// Merge saves every column of an existing entity.
func (r *GormRepository[E, ID]) Merge(ctx context.Context, entity E) (E, error) {
	var zero E
	v, err := r.field.Get(entity)
	if err != nil {
		return zero, err
	}

	db := r.conn(ctx)
	var n int64
	if err := db.Model(r.newModel()).Where(r.field.Column+" = ?", v).Count(&n).Error; err != nil {
		return zero, err
	}
	if n == 0 {
		return zero, models.NewNotFoundError(r.field.Owner.Name(), v)
	}

	if err := db.Save(entity).Error; err != nil {
		return zero, wrapDuplicate(err)
	}
	return entity, nil
}

func (r *GormRepository[E, ID]) Remove(ctx context.Context, entity E) error {
	v, err := r.field.Get(entity)
	if err != nil {
		return err
	}

	result := r.conn(ctx).Where(r.field.Column+" = ?", v).Delete(r.newModel())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError(r.field.Owner.Name(), v)
	}
	return nil
}

// where applies search and filter to a fresh statement on E's table.
func (r *GormRepository[E, ID]) where(ctx context.Context, search, filter string) (*gorm.DB, error) {
	var cond query.SQLCondition
	if search != "" {
		cond = cond.And(r.schema.SearchCondition(search))
	}
	if filter != "" {
		f, err := r.schema.Parse(filter)
		if err != nil {
			return nil, err
		}
		fc, err := f.SQL()
		if err != nil {
			return nil, err
		}
		cond = cond.And(fc)
	}

	db := r.conn(ctx).Model(r.newModel())
	if !cond.IsEmpty() {
		db = db.Where(cond.Clause, cond.Params...)
	}
	return db, nil
}

func (r *GormRepository[E, ID]) page(ctx context.Context, search, filter string, p models.Pagination, s models.Sort) (models.Page[E], error) {
	order, err := r.schema.OrderClause(s)
	if err != nil {
		return models.Page[E]{}, err
	}
	if order == "" {
		order = r.defaultOrder
	}

	db, err := r.where(ctx, search, filter)
	if err != nil {
		return models.Page[E]{}, err
	}
	db = db.Order(order)
	if p.IsPaged() {
		db = db.Limit(p.Size).Offset(p.Offset())
	}

	content := []E{}
	if err := db.Find(&content).Error; err != nil {
		return models.Page[E]{}, err
	}

	total := int64(len(content))
	if p.IsPaged() {
		if total, err = r.count(ctx, search, filter); err != nil {
			return models.Page[E]{}, err
		}
	}
	return models.NewPage(content, p, s, total), nil
}

func (r *GormRepository[E, ID]) count(ctx context.Context, search, filter string) (int64, error) {
	db, err := r.where(ctx, search, filter)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
