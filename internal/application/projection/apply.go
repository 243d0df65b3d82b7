package projection

import (
	"github.com/oksasatya/account-service/internal/domain/event"
	"github.com/oksasatya/account-service/internal/domain/readmodel"
)

// Apply folds a stored record into a read-model record.
func Apply(acc *readmodel.Account, rec event.Record) error {
	if err := event.Visit(rec.Event, applier{acc}); err != nil {
		return err
	}
	acc.Version = rec.Version
	return nil
}

type applier struct{ acc *readmodel.Account }

func (a applier) AccountCreated(e event.AccountCreated) error {
	*a.acc = readmodel.Account{
		ID:        e.AggregateID(),
		Name:      e.Name,
		Email:     e.Email,
		Roles:     append([]string{}, e.Roles...),
		Sources:   append([]string{}, e.Sources...),
		CreatedAt: e.OccurredAt(),
		UpdatedAt: e.OccurredAt(),
	}
	return nil
}

func (a applier) AccountUpdated(e event.AccountUpdated) error {
	if e.Name != nil {
		a.acc.Name = *e.Name
	}
	if e.Email != nil {
		a.acc.Email = *e.Email
	}
	if e.Roles != nil {
		a.acc.Roles = append([]string{}, e.Roles...)
	}
	if e.Sources != nil {
		a.acc.Sources = append([]string{}, e.Sources...)
	}
	a.acc.UpdatedAt = e.OccurredAt()
	return nil
}

func (a applier) AccountDeleted(e event.AccountDeleted) error {
	at := e.OccurredAt()
	a.acc.Deleted = true
	a.acc.DeletedAt = &at
	a.acc.UpdatedAt = at
	return nil
}

func (a applier) PasswordChanged(e event.PasswordChanged) error {
	a.acc.UpdatedAt = e.OccurredAt()
	return nil
}

func (a applier) AccountApproved(e event.AccountApproved) error {
	a.acc.Approved = true
	a.acc.UpdatedAt = e.OccurredAt()
	return nil
}

func (a applier) AccountBlocked(e event.AccountBlocked) error {
	at := e.OccurredAt()
	a.acc.BlockedAt = &at
	a.acc.UpdatedAt = at
	return nil
}

func (a applier) RolesGranted(e event.RolesGranted) error {
	a.acc.Roles = append([]string{}, e.Roles...)
	a.acc.UpdatedAt = e.OccurredAt()
	return nil
}
