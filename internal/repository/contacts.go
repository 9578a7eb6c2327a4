package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
)

var (
	ErrContactNotFound  = errors.New("contact not found")
	ErrDuplicateContact = errors.New("contact with this email or phone number already exists")
)

// contactColumns are the columns read back for every contact query.
const contactColumns = `id, name, sure_name, email, phone_number, birthday, additional_data, user_id, created_at, updated_at`

// ContactRepository stores contacts. All statements are prepared once when the repository is
// created.
type ContactRepository struct {
	insert        *sqlx.NamedStmt
	selectPage    *sqlx.Stmt
	selectWhereId *sqlx.Stmt
	updateWhereId *sqlx.Stmt
	deleteWhereId *sqlx.Stmt
}

// NewContactRepository prepares all contact statements on db.
func NewContactRepository(db *sqlx.DB) (*ContactRepository, error) {
	r := &ContactRepository{}
	var err error

	// Prepared statements offer a significant speed increase if executed many times.
	r.insert, err = db.PrepareNamed(`
		INSERT INTO contacts (name, sure_name, email, phone_number, birthday, additional_data, user_id)
		VALUES (:name, :sure_name, :email, :phone_number, :birthday, :additional_data, :user_id)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing contact insert: %w", err)
	}
	r.selectPage, err = db.Preparex(`
		SELECT ` + contactColumns + ` FROM contacts ORDER BY id LIMIT ? OFFSET ?
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing contact page select: %w", err)
	}
	r.selectWhereId, err = db.Preparex(`
		SELECT ` + contactColumns + ` FROM contacts WHERE id = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing contact select: %w", err)
	}
	r.updateWhereId, err = db.Preparex(`
		UPDATE contacts
		SET name = ?, sure_name = ?, email = ?, phone_number = ?, birthday = ?, additional_data = ?
		WHERE id = ? AND user_id = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing contact update: %w", err)
	}
	r.deleteWhereId, err = db.Preparex(`
		DELETE FROM contacts WHERE id = ? AND user_id = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing contact delete: %w", err)
	}
	return r, nil
}

// List returns a page of contacts in insertion order. An offset past the end yields an empty,
// non-nil slice.
func (r *ContactRepository) List(ctx context.Context, limit, offset int) ([]model.Contact, error) {
	contacts := []model.Contact{}
	if err := r.selectPage.SelectContext(ctx, &contacts, limit, offset); err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	return contacts, nil
}

// GetByID returns the contact with the given id or ErrContactNotFound.
func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	var contact model.Contact
	if err := r.selectWhereId.GetContext(ctx, &contact, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("selecting contact %d: %w", id, err)
	}
	return &contact, nil
}

// Create inserts a new contact owned by ownerID and returns it with the assigned id.
func (r *ContactRepository) Create(ctx context.Context, ownerID int64, req model.ContactRequest) (*model.Contact, error) {
	contact := model.Contact{
		Name:           req.Name,
		SureName:       req.SureName,
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		Birthday:       req.Birthday,
		AdditionalData: req.AdditionalData,
		UserId:         &ownerID,
	}
	result, err := r.insert.ExecContext(ctx, &contact)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, ErrDuplicateContact
		}
		return nil, fmt.Errorf("inserting contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading contact id: %w", err)
	}
	contact.Id = id
	return &contact, nil
}

// Update rewrites every editable field of a contact owned by ownerID and returns the stored
// version. A contact that does not exist, or belongs to somebody else, is left untouched and
// reported as ErrContactNotFound.
func (r *ContactRepository) Update(ctx context.Context, ownerID, id int64, req model.ContactRequest) (*model.Contact, error) {
	result, err := r.updateWhereId.ExecContext(ctx,
		req.Name, req.SureName, req.Email, req.PhoneNumber, req.Birthday, req.AdditionalData,
		id, ownerID,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, ErrDuplicateContact
		}
		return nil, fmt.Errorf("updating contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return nil, ErrContactNotFound
	}

	// Return the full contact after the update, including the refreshed timestamps.
	return r.GetByID(ctx, id)
}

// Delete removes a contact owned by ownerID, or returns ErrContactNotFound.
func (r *ContactRepository) Delete(ctx context.Context, ownerID, id int64) error {
	result, err := r.deleteWhereId.ExecContext(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrContactNotFound
	}
	return nil
}
