// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package mock simulates the submission backend for dry runs and demos.
//
// It validates the command grammar, keeps the same single global job the
// real library keeps, and reports a pending status for a configurable
// number of polls before reporting success.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/gateway"
	"github.com/ManuGH/xmlembed/internal/protocol"
)

// Status codes reported by the simulation.
const (
	StatusOK             = 0
	StatusProcessing     = 1
	StatusBadConfig      = 2
	StatusUnknownProduct = 3
	StatusNotReady       = 4
	StatusFileNotFound   = 5
	StatusBadCommand     = 6
)

type result struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"mensagem"`
	Protocol   string `json:"protocolo,omitempty"`
}

type envelope struct {
	Result result `json:"resultado"`
}

// Backend is a gateway.Port that never leaves the process.
type Backend struct {
	mu         sync.Mutex
	pending    int
	configured bool
	started    bool
	jobActive  bool
	remaining  int
	product    string
	jobs       int
}

// New returns a Backend reporting pendingPolls processing statuses per job.
func New(pendingPolls int) *Backend {
	if pendingPolls < 0 {
		pendingPolls = 0
	}
	return &Backend{pending: pendingPolls}
}

func reply(code int, msg string) (string, error) {
	return replyWith(result{StatusCode: code, Message: msg})
}

func replyWith(r result) (string, error) {
	b, err := json.Marshal(envelope{Result: r})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (b *Backend) Configure(_ context.Context, input string) (string, error) {
	creds, err := protocol.SplitConfigure(protocol.Command(input))
	if err != nil {
		return reply(StatusBadConfig, "configuracao invalida")
	}
	if creds.Product == "" {
		return reply(StatusBadConfig, "produto ausente")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configured = true
	b.product = creds.Product
	return reply(StatusOK, "configurado")
}

func (b *Backend) Start(_ context.Context, input string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.configured {
		return reply(StatusNotReady, "nao configurado")
	}
	if input != b.product {
		return reply(StatusUnknownProduct, "produto desconhecido")
	}
	b.started = true
	return reply(StatusOK, "iniciado")
}

func (b *Backend) Process(_ context.Context, input string) (string, error) {
	if input == protocol.PollToken {
		return b.poll()
	}
	kind, payload, err := protocol.SplitSubmit(protocol.Command(input))
	if err != nil {
		return reply(StatusBadCommand, "comando invalido")
	}
	if kind == model.SubmitFilePath {
		if _, err := os.Stat(payload); errors.Is(err, os.ErrNotExist) {
			return reply(StatusFileNotFound, "arquivo nao encontrado")
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return reply(StatusNotReady, "nao iniciado")
	}
	b.jobs++
	b.jobActive = true
	b.remaining = b.pending
	return replyWith(result{StatusCode: StatusProcessing, Message: "processando", Protocol: kind.Token()})
}

func (b *Backend) poll() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.jobActive {
		return reply(StatusNotReady, "nenhum envio")
	}
	if b.remaining > 0 {
		b.remaining--
		return reply(StatusProcessing, "processando")
	}
	return reply(StatusOK, "concluido")
}

func (b *Backend) Finalize(_ context.Context, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configured, b.started, b.jobActive = false, false, false
	b.remaining = 0
	return reply(StatusOK, "finalizado")
}

// Jobs returns how many submits were accepted.
func (b *Backend) Jobs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jobs
}

var _ gateway.Port = (*Backend)(nil)
