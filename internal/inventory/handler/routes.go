package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/herbstock/herbstock-backend/pkg/auth"
)

// Handlers bundles every inventory endpoint
type Handlers struct {
	Items        *ItemHandler
	Transactions *TransactionHandler
	Alerts       *AlertHandler
	Orders       *OrderHandler
	Prices       *PriceHandler
	Reports      *ReportHandler
}

// Mount registers the inventory API on r. Callers must already be
// authenticated; each route checks its own permission.
func (h *Handlers) Mount(r chi.Router) {
	read := auth.Require(auth.PermRead)
	write := auth.Require(auth.PermWrite)

	r.Route("/items", func(r chi.Router) {
		r.With(read).Get("/", h.Items.List)
		r.With(write).Post("/", h.Items.Upsert)
		r.With(read).Get("/{id}", h.Items.Get)
		r.With(read).Get("/{id}/ledger/verify", h.Items.VerifyLedger)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.With(read).Get("/", h.Transactions.List)
		r.With(write).Post("/", h.Transactions.Record)
	})

	r.Route("/alerts", func(r chi.Router) {
		r.With(read).Get("/", h.Alerts.List)
		r.With(auth.Require(auth.PermAlertsResolve)).Put("/{id}/resolve", h.Alerts.Resolve)
		r.With(auth.Require(auth.PermAlertsSweep)).Post("/sweep", h.Alerts.Sweep)
	})

	r.Route("/orders", func(r chi.Router) {
		r.With(read).Get("/", h.Orders.List)
		r.With(auth.Require(auth.PermOrdersManage)).Post("/", h.Orders.Create)
		r.With(read).Get("/{id}", h.Orders.Get)
		r.With(auth.Require(auth.PermOrdersManage)).Put("/{id}/status", h.Orders.UpdateStatus)
		r.With(auth.Require(auth.PermOrdersReceive)).Post("/{id}/receive", h.Orders.Receive)
	})

	r.Route("/prices", func(r chi.Router) {
		r.With(write).Post("/", h.Prices.Record)
		r.With(read).Get("/compare/{herbId}", h.Prices.Compare)
		r.With(read).Get("/history/{herbId}", h.Prices.History)
	})

	r.With(read).Get("/summary", h.Reports.Summary)
	r.With(read).Get("/reports/usage", h.Reports.Usage)
}
