package xlbuild

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/reader"
)

func newInline(t *testing.T, doc models.Document) *InlineBuilder {
	t.Helper()
	b, err := NewInlineBuilder(doc, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestInlineBuilderToFile(t *testing.T) {
	ctx := context.Background()
	b := newInline(t, models.Document{Sheets: []models.Sheet{
		{Name: "Numbers", Header: []string{"a", "b"}, Data: []models.Row{{1, 2}, {3, 4}}},
		{Header: []string{"note"}},
	}})
	events := recordEvents(t, b)

	require.NoError(t, b.AddRow(models.Row{5, 6}, ""))
	require.NoError(t, b.AddRows([]models.Row{{"x"}, {"y"}}, "Sheet2"))
	require.NoError(t, b.AddRow(models.Row{"late"}, "Extra"))

	path := filepath.Join(t.TempDir(), "inline.xlsx")
	got, err := b.ToFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, path, got)
	require.Equal(t, Started, b.State())
	require.Equal(t, []EventKind{EventStart, EventFlush, EventFileStart, EventFileEnd}, events.kinds())

	wb, err := reader.Inspect(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 3)

	require.Equal(t, "Numbers", wb.Sheets[0].Name)
	require.Equal(t, []models.Row{{"a", "b"}, {int64(1), int64(2)}, {int64(3), int64(4)}, {int64(5), int64(6)}}, wb.Sheets[0].Rows)
	require.Equal(t, "Sheet2", wb.Sheets[1].Name)
	require.Equal(t, []models.Row{{"note"}, {"x"}, {"y"}}, wb.Sheets[1].Rows)
	require.Equal(t, "Extra", wb.Sheets[2].Name)
	require.Equal(t, []models.Row{{"late"}}, wb.Sheets[2].Rows)
}

func TestInlineBuilderDefaultFileName(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	b := newInline(t, models.Document{Sheets: []models.Sheet{{Header: []string{"h"}}}})
	got, err := b.ToFile(ctx, "")
	require.NoError(t, err)
	require.Equal(t, DefaultFileName, got)
	require.FileExists(t, filepath.Join(dir, DefaultFileName))

	named := newInline(t, models.Document{Name: "report.xlsx", Sheets: []models.Sheet{{Header: []string{"h"}}}})
	got, err = named.ToFile(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "report.xlsx", got)
}

func TestInlineBuilderToFileFailure(t *testing.T) {
	b := newInline(t, models.Document{Sheets: []models.Sheet{{Header: []string{"h"}}}})
	events := recordEvents(t, b)

	path := filepath.Join(t.TempDir(), "missing", "out.xlsx")
	got, err := b.ToFile(context.Background(), path)
	require.Empty(t, got)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	require.Equal(t, "save", buildErr.Op)
	require.Equal(t, 1, events.count(EventError))
	require.Zero(t, events.count(EventFileEnd))
}

func TestInlineBuilderToStream(t *testing.T) {
	b := newInline(t, models.Document{Sheets: []models.Sheet{
		{Header: []string{"a", "b"}, Data: []models.Row{{1, 2}, {3, 4}}},
	}})
	events := recordEvents(t, b)

	rc, err := b.ToStream(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, events.count(EventStreamStart))
	require.Zero(t, events.count(EventStreamEnd))

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, 1, events.count(EventStreamEnd))

	path := filepath.Join(t.TempDir(), "stream.xlsx")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	wb, err := reader.Inspect(path)
	require.NoError(t, err)
	require.Equal(t, []models.Row{{"a", "b"}, {int64(1), int64(2)}, {int64(3), int64(4)}}, wb.Sheets[0].Rows)
}

func TestInlineBuilderStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newInline(t, models.Document{})
	events := recordEvents(t, b)

	require.NoError(t, b.Start(ctx))
	require.NoError(t, b.Start(ctx))
	require.Equal(t, []EventKind{EventStart, EventFlush}, events.kinds())
}

func TestInlineBuilderNoStart(t *testing.T) {
	b := newInline(t, models.Document{NoStart: true, Sheets: []models.Sheet{{Header: []string{"h"}}}})
	events := recordEvents(t, b)

	_, err := b.ToFile(context.Background(), filepath.Join(t.TempDir(), "out.xlsx"))
	require.NoError(t, err)
	require.Equal(t, NotStarted, b.State())
	require.Zero(t, events.count(EventStart))
}

func TestInlineBuilderAfterClose(t *testing.T) {
	b := newInline(t, models.Document{Sheets: []models.Sheet{{Header: []string{"h"}}}})
	require.NoError(t, b.Close())
	require.Equal(t, Ended, b.State())

	require.NoError(t, b.AddRow(models.Row{1}, ""))

	_, err := b.ToFile(context.Background(), filepath.Join(t.TempDir(), "out.xlsx"))
	require.ErrorIs(t, err, ErrNoWorkbook)

	_, err = b.ToStream(context.Background())
	require.ErrorIs(t, err, ErrNoWorkbook)
}
