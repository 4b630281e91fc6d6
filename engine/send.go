package engine

import (
	"context"
	"fmt"

	"github.com/udisondev/courier/config"
	"github.com/udisondev/courier/handshake"
	"github.com/udisondev/courier/store"
	"github.com/udisondev/courier/transfer"
	"github.com/udisondev/courier/wire"
)

func transferFromBootstrap(b config.Bootstrap) (*transfer.Pending, error) {
	p, err := transfer.New(b.Username, b.FilePath)
	if err != nil {
		return nil, newError(KindConfig, "load file", err)
	}
	return p, nil
}

// SendFile performs one send attempt: it checksums and encrypts the content,
// uploads it and records the server's checksum on p. Afterwards the engine
// is AwaitingVerdict and p.ShouldResend tells whether the checksums differ.
func (e *Engine) SendFile(ctx context.Context, p *transfer.Pending) error {
	const op = "send file"
	if err := e.checkSendable(op); err != nil {
		return e.fail(err)
	}
	prev := e.state

	e.setState(Sending)
	local := p.Prepare(e.sum)
	req := wire.SendFile{
		ClientID: e.self.ID,
		FileName: p.FileName,
		Content:  handshake.EncryptSession(e.self.SymmetricKey, p.Content),
	}

	payload, err := e.exchange(ctx, op, req, wire.CodeFileSent)
	if err != nil {
		e.setState(prev)
		return e.fail(err)
	}
	sent, err := wire.DecodeFileSent(payload)
	if err != nil {
		e.setState(prev)
		return e.fail(newError(KindProtocol, op, err))
	}
	if sent.FileName != p.FileName {
		e.setState(prev)
		return e.fail(newError(KindProtocol, op, fmt.Errorf("%w: %q", ErrFileNameMismatch, sent.FileName)))
	}
	if int(sent.ContentSize) != len(req.Content) {
		e.log.Warn("Server reported different content size",
			"fileName", p.FileName,
			"sent", len(req.Content),
			"reported", sent.ContentSize)
	}

	match := p.Verdict(sent.Checksum)
	e.log.Info("File sent",
		"fileName", p.FileName,
		"size", len(p.Content),
		"checksum", local,
		"serverChecksum", sent.Checksum,
		"match", match)

	e.setState(AwaitingVerdict)
	return nil
}

// Deliver sends p until the server's checksum matches. Each mismatch uses
// one of transfer.MaxRetries resends, announced with InvalidCRC; when none
// is left the transfer is abandoned with AbortCRC and an ErrIntegrity error.
// A match is confirmed with ValidCRC.
func (e *Engine) Deliver(ctx context.Context, p *transfer.Pending) error {
	const op = "deliver"
	if err := e.checkSendable(op); err != nil {
		return e.fail(err)
	}

	histID := e.beginHistory(ctx, p)
	for {
		if err := e.SendFile(ctx, p); err != nil {
			e.finishHistory(ctx, histID, store.StatusFailed)
			return err
		}
		e.recordAttempt(ctx, histID, p)

		if !p.ShouldResend {
			if err := e.acknowledge(ctx, op, wire.ValidCRC{FileName: p.FileName}); err != nil {
				e.finishHistory(ctx, histID, store.StatusFailed)
				return e.fail(err)
			}
			e.log.Info("Transfer verified", "fileName", p.FileName, "resends", p.RetryAttempts)
			e.setState(Done)
			e.finishHistory(ctx, histID, store.StatusDone)
			return nil
		}

		if p.NextAttempt() {
			e.setState(Retrying)
			if err := e.acknowledge(ctx, op, wire.InvalidCRC{FileName: p.FileName}); err != nil {
				e.finishHistory(ctx, histID, store.StatusFailed)
				return e.fail(err)
			}
			e.log.Info("Checksum mismatch, resending",
				"fileName", p.FileName,
				"attempt", p.RetryAttempts,
				"maxRetries", transfer.MaxRetries)
			continue
		}

		if err := e.acknowledge(ctx, op, wire.AbortCRC{FileName: p.FileName}); err != nil {
			e.finishHistory(ctx, histID, store.StatusFailed)
			return e.fail(err)
		}
		e.setState(Aborted)
		e.finishHistory(ctx, histID, store.StatusAborted)
		return e.fail(newError(KindIntegrity, op,
			fmt.Errorf("%w: %s still differs after %d resends", ErrIntegrity, p.FileName, p.RetryAttempts)))
	}
}

// checkSendable reports why a file cannot be sent now, if it cannot.
func (e *Engine) checkSendable(op string) error {
	if !e.self.SymmetricKeySet {
		return newError(KindCrypto, op, ErrNoSessionKey)
	}
	if e.state != Ready && e.state != Retrying {
		if e.state.Terminal() {
			return newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrTerminal, e.state))
		}
		return newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrState, e.state))
	}
	return nil
}

// acknowledge sends a verdict request and expects an Ack for this client.
func (e *Engine) acknowledge(ctx context.Context, op string, req wire.Request) error {
	payload, err := e.exchange(ctx, op, req, wire.CodeAck)
	if err != nil {
		return err
	}
	ack, err := wire.DecodeAck(payload)
	if err != nil {
		return newError(KindProtocol, op, err)
	}
	if ack.ClientID != e.self.ID {
		return newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrIdentityMismatch, ack.ClientID))
	}
	return nil
}

func (e *Engine) beginHistory(ctx context.Context, p *transfer.Pending) int64 {
	if e.history == nil {
		return 0
	}
	id, err := e.history.BeginTransfer(ctx, e.self.ID, p.FileName, int64(len(p.Content)), e.sum(p.Content))
	if err != nil {
		e.log.Warn("Failed to record transfer", "fileName", p.FileName, "error", err)
		return 0
	}
	return id
}

func (e *Engine) recordAttempt(ctx context.Context, id int64, p *transfer.Pending) {
	if e.history == nil || id == 0 {
		return
	}
	// Attempts are counted from one; RetryAttempts only counts resends.
	if err := e.history.RecordAttempt(ctx, id, p.RetryAttempts+1, p.RemoteChecksum); err != nil {
		e.log.Warn("Failed to record attempt", "transferID", id, "error", err)
	}
}

func (e *Engine) finishHistory(ctx context.Context, id int64, status string) {
	if e.history == nil || id == 0 {
		return
	}
	if err := e.history.FinishTransfer(ctx, id, status); err != nil {
		e.log.Warn("Failed to finish transfer record", "transferID", id, "status", status, "error", err)
	}
}
