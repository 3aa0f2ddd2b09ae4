package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNoCollection is returned when an owner has no stored collection.
var ErrNoCollection = errors.New("repository: no collection for owner")

// CardRow is one card definition from the cards table.
type CardRow struct {
	ID       int
	Name     string
	CardType string
	Cost     int
	Rarity   string
}

// CollectionStore reads persistent card collections. Decks are built from
// collection card IDs at fight setup time; the battle only ever sees the IDs.
type CollectionStore interface {
	// DeckFor returns the owner's deck as an ordered list of card IDs.
	DeckFor(ctx context.Context, ownerID int64) ([]int, error)
	// SaveDeck replaces the owner's deck.
	SaveDeck(ctx context.Context, ownerID int64, cardIDs []int) error
}

// PostgresCollectionStore backs CollectionStore with the decks table.
type PostgresCollectionStore struct {
	db *DB
}

// NewPostgresCollectionStore creates a store over the shared pool.
func NewPostgresCollectionStore(db *DB) *PostgresCollectionStore {
	return &PostgresCollectionStore{db: db}
}

// DeckFor loads the owner's deck ordered by slot position.
func (s *PostgresCollectionStore) DeckFor(ctx context.Context, ownerID int64) ([]int, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT card_id FROM deck_slots
		WHERE owner_id = $1
		ORDER BY position ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deck for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var cardIDs []int
	for rows.Next() {
		var cardID int
		if err := rows.Scan(&cardID); err != nil {
			return nil, fmt.Errorf("failed to scan deck slot: %w", err)
		}
		cardIDs = append(cardIDs, cardID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deck rows: %w", err)
	}
	if len(cardIDs) == 0 {
		return nil, ErrNoCollection
	}
	return cardIDs, nil
}

// SaveDeck replaces the owner's deck slots in one transaction.
func (s *PostgresCollectionStore) SaveDeck(ctx context.Context, ownerID int64, cardIDs []int) error {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM deck_slots WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("failed to clear deck for owner %d: %w", ownerID, err)
	}
	for position, cardID := range cardIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO deck_slots (owner_id, position, card_id)
			VALUES ($1, $2, $3)
		`, ownerID, position, cardID); err != nil {
			return fmt.Errorf("failed to insert deck slot %d: %w", position, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit deck for owner %d: %w", ownerID, err)
	}
	return nil
}

// CardByID loads a single card definition.
func (s *PostgresCollectionStore) CardByID(ctx context.Context, cardID int) (*CardRow, error) {
	var row CardRow
	err := s.db.pool.QueryRow(ctx, `
		SELECT id, name, card_type, cost, rarity FROM cards WHERE id = $1
	`, cardID).Scan(&row.ID, &row.Name, &row.CardType, &row.Cost, &row.Rarity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("repository: no card %d", cardID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load card %d: %w", cardID, err)
	}
	return &row, nil
}
