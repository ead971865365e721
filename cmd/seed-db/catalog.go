package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/fieldservice-sale/internal/domain/auth"
	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
)

type templateJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Instructions string          `json:"instructions"`
	Duration     decimal.Decimal `json:"duration"`
	Categories   []string        `json:"categories"`
}

type productJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	InvoicePolicy string          `json:"invoicePolicy"`
	Price         decimal.Decimal `json:"price"`
	Tracking      string          `json:"tracking"`
	Template      *templateJSON   `json:"template"`
}

type stageJSON struct {
	ID       string `json:"id"`
	Ref      string `json:"ref"`
	Name     string `json:"name"`
	Sequence int    `json:"sequence"`
	Closed   bool   `json:"closed"`
}

type locationJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
}

type catalog struct {
	Products  []productJSON  `json:"products"`
	Stages    []stageJSON    `json:"stages"`
	Locations []locationJSON `json:"locations"`
}

// readCatalog decodes a JSON catalog, gunzipping files ending in .gz.
func readCatalog(path string) (*catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var c catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &c, nil
}

func (p productJSON) product() product.Product {
	out := product.Product{
		ID:            p.ID,
		Name:          p.Name,
		Type:          product.Type(p.Type),
		InvoicePolicy: product.InvoicePolicy(p.InvoicePolicy),
		ListPrice:     p.Price,
		Tracking:      product.Tracking(p.Tracking),
	}
	if out.Type == "" {
		out.Type = product.TypeService
	}
	if out.InvoicePolicy == "" {
		out.InvoicePolicy = product.InvoiceOrdered
	}
	if out.Tracking == "" {
		out.Tracking = product.TrackingNone
	}
	if t := p.Template; t != nil {
		out.Template = &product.Template{
			ID:           t.ID,
			Name:         t.Name,
			Instructions: t.Instructions,
			Duration:     t.Duration,
			CategoryIDs:  t.Categories,
		}
	}
	return out
}

type upserter[T any] interface {
	Upsert(ctx context.Context, v T) error
}

// target is where a catalog is written.
type target struct {
	products  upserter[product.Product]
	stages    upserter[fsm.Stage]
	locations upserter[fsm.Location]
	apikeys   upserter[auth.APIKeyInfo]
}

// seed writes c, the default stages when c has none, and an API key
// holding both sales and field service groups.
func seed(ctx context.Context, t target, c *catalog, apiKey, pepper string) error {
	stages := make([]fsm.Stage, 0, len(c.Stages))
	for _, s := range c.Stages {
		stages = append(stages, fsm.Stage{ID: s.ID, Ref: s.Ref, Name: s.Name, Sequence: s.Sequence, IsClosed: s.Closed})
	}
	if len(stages) == 0 {
		stages = fsm.DefaultStages()
	}
	for _, s := range stages {
		if err := t.stages.Upsert(ctx, s); err != nil {
			return errors.Wrapf(err, "upsert stage %s", s.ID)
		}
	}
	slog.Info("upserted stages", slog.Int("count", len(stages)))

	for _, l := range c.Locations {
		if err := t.locations.Upsert(ctx, fsm.Location{ID: l.ID, Name: l.Name, Direction: l.Direction}); err != nil {
			return errors.Wrapf(err, "upsert location %s", l.ID)
		}
	}
	slog.Info("upserted locations", slog.Int("count", len(c.Locations)))

	for _, p := range c.Products {
		if err := t.products.Upsert(ctx, p.product()); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	if err := t.apikeys.Upsert(ctx, auth.APIKeyInfo{
		ID:        "default",
		KeyHash:   auth.HashKey([]byte(pepper), apiKey),
		Name:      "Default key",
		UserID:    "admin",
		CompanyID: "main",
		Groups:    []string{env.GroupSaleUser, env.GroupFSMUser},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}
	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}
