package syncjob

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dog-boarding/backend/internal/scraper"
	"github.com/dog-boarding/backend/internal/storage/models"
)

// UnknownDogName is used when the appointment page has no pet name.
const UnknownDogName = "Unknown"

// Outcome is what reconciliation did with an appointment's dog.
type Outcome string

const (
	// OutcomeCreated means a new external dog was inserted.
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated means the dog already imported under this external id was refreshed.
	OutcomeUpdated Outcome = "updated"
	// OutcomeLinked means a manual dog with the same name was reused untouched.
	OutcomeLinked Outcome = "linked"
)

// Reconciler maps scraped appointments onto local dogs and boardings.
type Reconciler struct {
	dogs      DogStore
	boardings BoardingStore
	now       func() time.Time
	log       zerolog.Logger
}

// NewReconciler creates a reconciler over the given stores.
func NewReconciler(dogs DogStore, boardings BoardingStore, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		dogs:      dogs,
		boardings: boardings,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// Reconcile upserts the dog and, when both stay dates are known, the
// boarding for one appointment. Manual dogs matched by name are never
// modified.
func (r *Reconciler) Reconcile(ctx context.Context, d *scraper.AppointmentDetails) (Outcome, error) {
	dogID, outcome, err := r.reconcileDog(ctx, d)
	if err != nil {
		return "", err
	}

	if !d.HasStayDates() {
		r.log.Debug().Str("external_id", d.ExternalID).Msg("No stay dates, skipping boarding")
		return outcome, nil
	}
	if err := r.upsertBoarding(ctx, d, dogID); err != nil {
		return "", err
	}
	return outcome, nil
}

func (r *Reconciler) reconcileDog(ctx context.Context, d *scraper.AppointmentDetails) (string, Outcome, error) {
	existing, err := r.dogs.GetByExternalID(ctx, d.ExternalID)
	if err != nil {
		return "", "", fmt.Errorf("looking up dog by external id: %w", err)
	}
	if existing != nil {
		applyContact(existing, d)
		existing.UpdatedAt = r.now()
		if err := r.dogs.Update(ctx, existing); err != nil {
			return "", "", fmt.Errorf("updating dog %s: %w", existing.ID, err)
		}
		return existing.ID, OutcomeUpdated, nil
	}

	name := dogName(d)
	named, err := r.dogs.FindByName(ctx, name)
	if err != nil {
		return "", "", fmt.Errorf("looking up dog by name: %w", err)
	}
	if named != nil && named.IsManual() {
		r.log.Debug().Str("external_id", d.ExternalID).Str("dog_id", named.ID).Msg("Linked to manual dog")
		return named.ID, OutcomeLinked, nil
	}

	dog := &models.Dog{
		Source:     models.SourceExternal,
		ExternalID: models.StringPtr(d.ExternalID),
		Active:     true,
	}
	applyContact(dog, d)
	if err := r.dogs.Create(ctx, dog); err != nil {
		return "", "", fmt.Errorf("creating dog: %w", err)
	}
	return dog.ID, OutcomeCreated, nil
}

func (r *Reconciler) upsertBoarding(ctx context.Context, d *scraper.AppointmentDetails, dogID string) error {
	existing, err := r.boardings.GetByExternalID(ctx, d.ExternalID)
	if err != nil {
		return fmt.Errorf("looking up boarding: %w", err)
	}

	if existing != nil {
		existing.DogID = dogID
		existing.ArrivalDateTime = *d.CheckIn
		existing.DepartureDateTime = *d.CheckOut
		existing.Source = models.SourceExternal
		existing.Status = models.BoardingStatusScheduled
		if err := r.boardings.Update(ctx, existing); err != nil {
			return fmt.Errorf("updating boarding %s: %w", existing.ID, err)
		}
		return nil
	}

	b := &models.Boarding{
		DogID:             dogID,
		ArrivalDateTime:   *d.CheckIn,
		DepartureDateTime: *d.CheckOut,
		Source:            models.SourceExternal,
		ExternalID:        models.StringPtr(d.ExternalID),
		Status:            models.BoardingStatusScheduled,
	}
	if err := r.boardings.Create(ctx, b); err != nil {
		return fmt.Errorf("creating boarding: %w", err)
	}
	return nil
}

func dogName(d *scraper.AppointmentDetails) string {
	if d.PetName == "" {
		return UnknownDogName
	}
	return d.PetName
}

// applyContact copies the scraped identity and owner fields onto dog.
// Rates and the active flag are staff-managed and left alone.
func applyContact(dog *models.Dog, d *scraper.AppointmentDetails) {
	dog.Name = dogName(d)
	dog.Breed = models.StringPtr(d.PetBreed)
	dog.OwnerName = models.StringPtr(d.ClientName)
	dog.OwnerEmail = models.StringPtr(d.ClientEmail)
	dog.OwnerPhone = models.StringPtr(d.ClientPhone)
}
