package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imageupdater/internal/client"
	"imageupdater/internal/config"
	"imageupdater/internal/console"
	"imageupdater/internal/hostctx"
	"imageupdater/internal/logger"
	"imageupdater/internal/models"
	"imageupdater/internal/session"
)

// app is what every command works with: the client, the console view-model
// and the session file that carries state between invocations.
type app struct {
	cfg     *config.ClientConfig
	log     *logger.Logger
	host    hostctx.Context
	store   *session.Store
	state   *session.State
	client  *client.Client
	console *console.Console
}

func newApp(launchURL string) (*app, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel)

	host, err := hostctx.FromLaunchURL(launchURL, cfg.ShopifyAPIKey, cfg.AppURL)
	if err != nil {
		return nil, err
	}

	store, err := session.Open(cfg.SessionFile)
	if err != nil {
		return nil, err
	}
	state, err := store.Load()
	if err != nil {
		store.Close()
		return nil, err
	}

	c := client.NewClient(client.Config{
		BaseURL:      cfg.APIBaseURL,
		Token:        state.Token,
		NativeSearch: cfg.NativeSearch,
		Timeout:      cfg.Timeout,
	}, log)

	return &app{
		cfg:     cfg,
		log:     log,
		host:    host,
		store:   store,
		state:   state,
		client:  c,
		console: console.New(c, log),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) requireLogin() error {
	if !a.state.Authenticated(time.Now()) {
		return session.ErrNotLoggedIn
	}
	return nil
}

// restore rebuilds the loaded collection, the selection and the tracked
// operation saved by the previous command.
func (a *app) restore(ctx context.Context, withProducts bool) error {
	var col models.Collection
	if withProducts && a.state.CollectionID != "" {
		col = models.Collection{ID: a.state.CollectionID, Title: a.state.CollectionTitle}
	}
	var op *models.ImageUpdateOperation
	if a.state.OperationID != "" {
		var err error
		op, err = a.client.GetImageUpdateOperation(ctx, a.state.OperationID)
		if err != nil {
			if client.StatusCode(err) == 404 {
				a.log.Warn("Forgetting operation %s: not found on server", a.state.OperationID)
				a.state.OperationID = ""
			} else {
				return fmt.Errorf("failed to load operation %s: %w", a.state.OperationID, err)
			}
		}
	}
	return a.console.Restore(ctx, col, a.state.Selected, op)
}

// save writes the console's working state back to the session file.
func (a *app) save() error {
	v := a.console.Snapshot()
	if v.Collection != nil {
		a.state.CollectionID = v.Collection.ID
		a.state.CollectionTitle = v.Collection.Title
		a.state.ProductIDs = a.console.Selection().Loaded()
		a.state.Selected = v.SelectedIDs
	}
	a.state.OperationID = ""
	if v.Operation != nil {
		a.state.OperationID = v.Operation.OperationID
	}
	return a.store.Save(a.state)
}

func (a *app) requireCollection() error {
	if a.state.CollectionID == "" {
		return errors.New("no collection loaded, run `piu products <collection-id>` first")
	}
	return nil
}
