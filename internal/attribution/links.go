package attribution

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CodeGenerator generates candidate attribution codes.
type CodeGenerator func() string

const maxIssueAttempts = 5

// Issuer mints tracking links with fresh attribution codes.
type Issuer struct {
	store        LinkRepository
	generateCode CodeGenerator
	now          func() time.Time
}

// NewIssuer creates a link issuer.
func NewIssuer(store LinkRepository, generator CodeGenerator) *Issuer {
	return &Issuer{
		store:        store,
		generateCode: generator,
		now:          time.Now,
	}
}

// Issue validates the destination and stores a new link for owner. Codes are retried
// on collision since they are short and random.
func (i *Issuer) Issue(ctx context.Context, owner OwnerID, destination string) (*Link, error) {
	normalized, err := NormalizeDestination(destination)
	if err != nil {
		return nil, err
	}

	for range maxIssueAttempts {
		link := &Link{
			Code:           Code(i.generateCode()),
			DestinationURL: normalized,
			OwnerID:        owner,
			CreatedAt:      i.now(),
		}

		err = i.store.Save(ctx, link)
		if err == nil {
			return link, nil
		}

		if !errors.Is(err, ErrDuplicate) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("issue link after %d attempts: %w", maxIssueAttempts, err)
}
