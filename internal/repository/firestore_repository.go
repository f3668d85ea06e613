package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/DotZohaib/ShopSphere/internal/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreRepository stores one document per session in a hosted Firestore collection.
// The document id is the session id and doubles as the cart id.
type FirestoreRepository struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreRepository(client *firestore.Client, collection string) *FirestoreRepository {
	if collection == "" {
		collection = "carts"
	}
	return &FirestoreRepository{client: client, collection: collection}
}

type cartDoc struct {
	SessionID string        `firestore:"sessionId"`
	Items     []cartLineDoc `firestore:"items"`
	Revision  int64         `firestore:"revision"`
	CreatedAt time.Time     `firestore:"createdAt"`
	UpdatedAt time.Time     `firestore:"updatedAt"`
}

type cartLineDoc struct {
	ProductID string `firestore:"productId"`
	Quantity  int    `firestore:"quantity"`
}

func (r *FirestoreRepository) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(r.collection).Doc(id)
}

func (r *FirestoreRepository) FetchCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	snap, err := r.doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return decodeCart(snap)
}

func (r *FirestoreRepository) CreateCart(ctx context.Context, sessionID string, items []domain.CartLine) (*domain.Cart, error) {
	now := time.Now().UTC()
	doc := cartDoc{
		SessionID: sessionID,
		Items:     toLineDocs(items),
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.doc(sessionID).Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, ErrCartExists
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return doc.toDomain(sessionID), nil
}

func (r *FirestoreRepository) ReplaceItems(ctx context.Context, cartID string, expectedRevision int64, items []domain.CartLine) (*domain.Cart, error) {
	ref := r.doc(cartID)
	var updated *domain.Cart

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrCartNotFound
			}
			return err
		}

		var doc cartDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode cart: %w", err)
		}
		if expectedRevision != AnyRevision && doc.Revision != expectedRevision {
			return ErrRevisionMismatch
		}

		doc.Items = toLineDocs(items)
		doc.Revision++
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = doc.toDomain(cartID)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCartNotFound) || errors.Is(err, ErrRevisionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to replace cart items: %w", err)
	}
	return updated, nil
}

func decodeCart(snap *firestore.DocumentSnapshot) (*domain.Cart, error) {
	var doc cartDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (d cartDoc) toDomain(id string) *domain.Cart {
	items := make([]domain.CartLine, 0, len(d.Items))
	for _, line := range d.Items {
		items = append(items, domain.CartLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return &domain.Cart{
		ID:        id,
		SessionID: d.SessionID,
		Items:     items,
		Revision:  d.Revision,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toLineDocs(items []domain.CartLine) []cartLineDoc {
	docs := make([]cartLineDoc, 0, len(items))
	for _, line := range items {
		docs = append(docs, cartLineDoc{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return docs
}
