package service

import (
	"database/sql"
	"errors"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	appErrors "github.com/noah-isme/campus-book-exchange/pkg/errors"
)

// storeError maps sql.ErrNoRows to a NOT_FOUND with notFoundMsg, passes domain
// errors through and hides anything else behind INTERNAL_ERROR.
func storeError(err error, notFoundMsg, internalMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, internalMsg)
}

func validationError(err error, msg string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
}

// authorizeOwner lets admins through and requires plain users to own the book.
func authorizeOwner(actor models.Actor, book *models.Book) error {
	if actor.Admin || book.OwnedBy(actor.Email) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only the seller may change this listing")
}

// resolveParty picks the buyer/bidder address: the payload value when given,
// the caller otherwise. Plain users cannot act for someone else.
func resolveParty(actor models.Actor, requested string) (string, error) {
	if requested == "" {
		requested = actor.Email
	}
	if requested == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "buyer_email is required")
	}
	if !actor.Admin && requested != actor.Email {
		return "", appErrors.Clone(appErrors.ErrForbidden, "cannot act on behalf of another user")
	}
	return requested, nil
}
