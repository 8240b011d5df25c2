package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/game-catalog/internal/model"
	"github.com/iliyamo/game-catalog/internal/repository"
)

// CatalogService manages the game catalog.
type CatalogService struct {
	games GameStore
	log   *logrus.Entry
}

// NewCatalogService wires the catalog to its store.
func NewCatalogService(games GameStore, logger *logrus.Logger) *CatalogService {
	if games == nil {
		panic("nil store passed to NewCatalogService")
	}
	return &CatalogService{games: games, log: logger.WithField("component", "catalog")}
}

func (s *CatalogService) List(ctx context.Context) ([]model.Game, error) {
	games, err := s.games.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (model.Game, error) {
	g, err := s.games.Get(ctx, id)
	if errors.Is(err, repository.ErrGameNotFound) {
		return model.Game{}, ErrGameNotFound
	}
	if err != nil {
		return model.Game{}, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

// Create validates g and stores it under a fresh id.
func (s *CatalogService) Create(ctx context.Context, g model.Game) (model.Game, error) {
	g, err := normalize(g)
	if err != nil {
		return model.Game{}, err
	}
	created, err := s.games.Create(ctx, g)
	if err != nil {
		return model.Game{}, fmt.Errorf("create game: %w", err)
	}
	s.log.WithFields(logrus.Fields{"game_id": created.ID, "title": created.Title}).Info("game created")
	return created, nil
}

// Update replaces the mutable fields of an existing game.  It never
// creates a game: unknown ids yield ErrGameNotFound.
func (s *CatalogService) Update(ctx context.Context, g model.Game) (model.Game, error) {
	g, err := normalize(g)
	if err != nil {
		return model.Game{}, err
	}
	err = s.games.Update(ctx, g)
	if errors.Is(err, repository.ErrGameNotFound) {
		return model.Game{}, ErrGameNotFound
	}
	if err != nil {
		return model.Game{}, fmt.Errorf("update game: %w", err)
	}
	s.log.WithField("game_id", g.ID).Info("game updated")
	return g, nil
}

// Delete removes a game; deleting an unknown id succeeds.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.games.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	s.log.WithField("game_id", id).Info("game deleted")
	return nil
}

func normalize(g model.Game) (model.Game, error) {
	g.Title = strings.TrimSpace(g.Title)
	g.Description = strings.TrimSpace(g.Description)
	switch {
	case g.Title == "":
		return g, invalidGame("title is required")
	case utf8.RuneCountInString(g.Title) > model.MaxTitleLen:
		return g, invalidGame("title must be at most %d characters", model.MaxTitleLen)
	case g.Description == "":
		return g, invalidGame("description is required")
	case utf8.RuneCountInString(g.Description) > model.MaxDescriptionLen:
		return g, invalidGame("description must be at most %d characters", model.MaxDescriptionLen)
	case g.Price.IsNegative():
		return g, invalidGame("price must not be negative")
	}
	g.Price = g.Price.Round(2)
	return g, nil
}
