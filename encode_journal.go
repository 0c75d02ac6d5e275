package folio

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// maxLineSize bounds a journal line; withdrawals of large baskets carry one path per asset.
const maxLineSize = 1 << 20

// DecodeJournal reads events from a stream of JSONL data, one event per line, in order.
func DecodeJournal(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for n := 1; scanner.Scan(); n++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}
		ev, err := decodeEvent(line)
		if err != nil {
			return nil, fmt.Errorf("journal line %d: %w", n, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}
	return events, nil
}

func decodeEvent(line []byte) (Event, error) {
	var identifier struct {
		Event EventType `json:"event"`
	}
	if err := json.Unmarshal(line, &identifier); err != nil {
		return nil, fmt.Errorf("could not identify event in %q: %w", string(line), err)
	}

	var (
		ev  Event
		err error
	)
	switch identifier.Event {
	case EvtInitialize:
		var e Initialized
		err = json.Unmarshal(line, &e)
		ev = e
	case EvtDeposit:
		var e Deposited
		err = json.Unmarshal(line, &e)
		ev = e
	case EvtWithdraw:
		var e Withdrawn
		err = json.Unmarshal(line, &e)
		ev = e
	case EvtClaim:
		var e FeesClaimed
		err = json.Unmarshal(line, &e)
		ev = e
	default:
		err = fmt.Errorf("unknown event type: %q", identifier.Event)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// EncodeEvent marshals a single event to JSON and writes it to the writer,
// followed by a newline, in JSONL format.
func EncodeEvent(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.What(), err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write %s event: %w", ev.What(), err)
	}
	return nil
}

// EncodeJournal writes every event in JSONL format, oldest first.
func EncodeJournal(w io.Writer, events []Event) error {
	for _, ev := range events {
		if err := EncodeEvent(w, ev); err != nil {
			return err
		}
	}
	return nil
}

// LoadJournal reads the journal file. A missing file is an empty journal.
func LoadJournal(filename string) ([]Event, error) {
	f, err := os.Open(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open journal %q: %w", filename, err)
	}
	defer f.Close()
	events, err := DecodeJournal(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode journal %q: %w", filename, err)
	}
	return events, nil
}

// AppendJournal appends events to the journal file, creating it if needed.
func AppendJournal(filename string, events ...Event) (err error) {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("could not open journal %q: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("could not close journal %q: %w", filename, cerr)
		}
	}()
	return EncodeJournal(f, events)
}
