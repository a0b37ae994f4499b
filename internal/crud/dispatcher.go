package crud

import (
	"context"
	"log"
	"strings"
	"time"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
)

// Dispatcher performs inserts, updates and deletes through the gateway and
// reconciles the store with what the gateway returned.
type Dispatcher struct {
	gw      gateway.Gateway
	entity  models.Entity
	store   *Store
	session *Session

	// report receives the outcome of every mutation: the error, or nil.
	report func(error)
	now    func() time.Time
}

func NewDispatcher(gw gateway.Gateway, entity models.Entity, store *Store, session *Session) *Dispatcher {
	return &Dispatcher{
		gw:      gw,
		entity:  entity,
		store:   store,
		session: session,
		report:  func(error) {},
		now:     time.Now,
	}
}

// Create validates fields, inserts them and appends the returned row.
func (d *Dispatcher) Create(ctx context.Context, fields models.Row) (models.Row, error) {
	row, err := d.create(ctx, fields)
	d.done("create", err)
	return row, err
}

func (d *Dispatcher) create(ctx context.Context, fields models.Row) (models.Row, error) {
	if err := d.session.begin(); err != nil {
		return nil, err
	}
	defer d.session.finish()

	fields = fields.Without(models.IDField)
	if !d.entity.Versioned {
		fields = fields.Without(models.VersionField)
	}
	if missing := missingFields(fields, d.entity.RequiredFields, true); len(missing) > 0 {
		return nil, &ValidationError{Entity: d.entity.Name, Fields: missing}
	}
	if d.entity.StampUser {
		user, ok := d.gw.CurrentUser(ctx)
		if !ok {
			return nil, ErrNotAuthenticated
		}
		fields = fields.Merge(models.Row{
			models.CreatedByField: user,
			models.CreatedAtField: d.now().UTC(),
		})
	}

	row, err := d.gw.Insert(ctx, d.entity.Table, fields)
	if err != nil {
		return nil, wrap("insert", d.entity.Table, err)
	}
	d.store.UpsertLocal(row)
	d.session.Close()
	return row, nil
}

// CreateForm dispatches a typed create form.
func (d *Dispatcher) CreateForm(ctx context.Context, f models.Form) (models.Row, error) {
	return d.Create(ctx, models.FormRow(f))
}

// Update sends the given fields for the row with id and replaces the local
// copy with the returned row. On versioned entities a version in fields makes
// the update conditional.
func (d *Dispatcher) Update(ctx context.Context, id int64, fields models.Row) (models.Row, error) {
	row, err := d.update(ctx, id, fields)
	d.done("update", err)
	return row, err
}

func (d *Dispatcher) update(ctx context.Context, id int64, fields models.Row) (models.Row, error) {
	if err := d.session.begin(); err != nil {
		return nil, err
	}
	defer d.session.finish()

	fields = fields.Without(models.IDField)
	if !d.entity.Versioned {
		fields = fields.Without(models.VersionField)
	}
	if missing := missingFields(fields, d.entity.RequiredFields, false); len(missing) > 0 {
		return nil, &ValidationError{Entity: d.entity.Name, Fields: missing}
	}
	if d.entity.StampUser {
		user, ok := d.gw.CurrentUser(ctx)
		if !ok {
			return nil, ErrNotAuthenticated
		}
		fields = fields.Merge(models.Row{
			models.UpdatedByField: user,
			models.UpdatedAtField: d.now().UTC(),
		})
	}

	row, err := d.gw.Update(ctx, d.entity.Table, fields, id)
	if err != nil {
		return nil, wrap("update", d.entity.Table, err)
	}
	d.store.UpsertLocal(row)
	d.session.Close()
	return row, nil
}

// UpdateForm dispatches the set fields of a typed form.
func (d *Dispatcher) UpdateForm(ctx context.Context, id int64, f models.Form) (models.Row, error) {
	return d.Update(ctx, id, models.PatchRow(f))
}

// Delete removes the row with id. Asking the user to confirm is the caller's
// job.
func (d *Dispatcher) Delete(ctx context.Context, id int64) error {
	err := d.gw.Delete(ctx, d.entity.Table, id)
	if err != nil {
		err = wrap("delete", d.entity.Table, err)
	} else {
		d.store.RemoveLocal(id)
	}
	d.done("delete", err)
	return err
}

func (d *Dispatcher) done(op string, err error) {
	if err == ErrSubmitInFlight {
		return
	}
	if err != nil {
		log.Printf("[Page:%s] %s failed: %v", d.entity.Name, op, err)
	}
	d.report(err)
}

// missingFields lists required fields that are blank. For a partial update
// (all=false) only fields present in the patch are checked.
func missingFields(fields models.Row, required []string, all bool) []string {
	var missing []string
	for _, name := range required {
		if _, present := fields[name]; !present && !all {
			continue
		}
		if strings.TrimSpace(fields.String(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
