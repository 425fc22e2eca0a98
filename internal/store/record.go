package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ChatSeparator splits the fields of a persisted chat record. Usernames must
// not contain it; message text may.
const ChatSeparator = "<*>"

// EncodeChat renders entry as "username<*>text<*>timestamp".
func EncodeChat(entry ChatEntry) string {
	return entry.Username + ChatSeparator + entry.Text + ChatSeparator +
		entry.Timestamp.UTC().Format(time.RFC3339Nano)
}

// DecodeChat parses a record written by EncodeChat. The username ends at the
// first separator and the timestamp starts after the last one, so the text
// may itself contain the separator.
func DecodeChat(record string) (ChatEntry, error) {
	first := strings.Index(record, ChatSeparator)
	last := strings.LastIndex(record, ChatSeparator)
	if first < 0 || first == last {
		return ChatEntry{}, fmt.Errorf("malformed chat record %q", record)
	}

	ts, err := time.Parse(time.RFC3339Nano, record[last+len(ChatSeparator):])
	if err != nil {
		return ChatEntry{}, fmt.Errorf("malformed chat timestamp in %q: %w", record, err)
	}

	return ChatEntry{
		Username:  record[:first],
		Text:      record[first+len(ChatSeparator) : last],
		Timestamp: ts,
	}, nil
}

// EncodeStroke renders entry as "x0 y0 x1 y1 color width".
func EncodeStroke(entry StrokeEntry) string {
	return strings.Join([]string{
		formatFloat(entry.Start.X),
		formatFloat(entry.Start.Y),
		formatFloat(entry.End.X),
		formatFloat(entry.End.Y),
		entry.Color,
		formatFloat(entry.Width),
	}, " ")
}

// DecodeStroke parses a record written by EncodeStroke. Colors such as
// "rgb(0, 0, 0)" contain spaces, so everything between the coordinates and
// the width is the color.
func DecodeStroke(record string) (StrokeEntry, error) {
	fields := strings.Fields(record)
	if len(fields) < 6 {
		return StrokeEntry{}, fmt.Errorf("malformed stroke record %q", record)
	}

	var coords [4]float64
	for i := range coords {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return StrokeEntry{}, fmt.Errorf("malformed stroke coordinate in %q: %w", record, err)
		}
		coords[i] = v
	}

	width, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return StrokeEntry{}, fmt.Errorf("malformed stroke width in %q: %w", record, err)
	}

	return StrokeEntry{
		Start: Point{X: coords[0], Y: coords[1]},
		End:   Point{X: coords[2], Y: coords[3]},
		Color: strings.Join(fields[4:len(fields)-1], " "),
		Width: width,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// decodeChatRecords decodes a chat log. A malformed record is logged and
// skipped so that one bad entry cannot make the whole room unreplayable.
func decodeChatRecords(records []string, log *zap.Logger) []ChatEntry {
	entries := make([]ChatEntry, 0, len(records))
	for i, record := range records {
		entry, err := DecodeChat(record)
		if err != nil {
			log.Warn("skipping malformed chat record", zap.Int("index", i), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func decodeStrokeRecords(records []string, log *zap.Logger) []StrokeEntry {
	entries := make([]StrokeEntry, 0, len(records))
	for i, record := range records {
		entry, err := DecodeStroke(record)
		if err != nil {
			log.Warn("skipping malformed stroke record", zap.Int("index", i), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}
