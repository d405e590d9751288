package worker

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/protocol"
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/reader"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (r *recorder) Send(msg protocol.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recorder) messages() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Message(nil), r.msgs...)
}

type sliceRx struct {
	msgs []protocol.Message
}

func (s *sliceRx) Recv(msg *protocol.Message) bool {
	if len(s.msgs) == 0 {
		return false
	}
	*msg = s.msgs[0]
	s.msgs = s.msgs[1:]
	return true
}

type call struct {
	op    string
	sheet string
	rows  int
}

type fakeEncoder struct {
	calls     []call
	appendErr error
	path      string
	closed    bool
}

func (f *fakeEncoder) Append(sheet string, rows ...models.Row) error {
	f.calls = append(f.calls, call{op: "append", sheet: sheet, rows: len(rows)})
	return f.appendErr
}

func (f *fakeEncoder) Commit(sheet string) error {
	f.calls = append(f.calls, call{op: "commit", sheet: sheet})
	return nil
}

func (f *fakeEncoder) Finalize() (string, error) {
	f.calls = append(f.calls, call{op: "finalize"})
	return f.path, nil
}

func (f *fakeEncoder) Close() error {
	f.closed = true
	return nil
}

func TestWorkerExecutesCommandsInOrder(t *testing.T) {
	enc := &fakeEncoder{path: "/tmp/out.xlsx"}
	out := &recorder{}
	w := newWorker(Config{}, enc.path, enc, out)

	w.Handle(protocol.Row("A", models.Row{"h1", "h2"}))
	w.Handle(protocol.Rows("A", []models.Row{{1, 2}, {3, 4}}))
	w.Handle(protocol.FlushSheet("A"))
	w.Handle(protocol.Rows("B", []models.Row{{5}}))
	w.Handle(protocol.Flush())
	w.Wait()

	require.Equal(t, []call{
		{op: "append", sheet: "A", rows: 1},
		{op: "append", sheet: "A", rows: 2},
		{op: "commit", sheet: "A"},
		{op: "append", sheet: "B", rows: 1},
		{op: "finalize"},
	}, enc.calls)

	require.Equal(t, []protocol.Message{
		protocol.Event(protocol.TypeFlushSheet, "A", ""),
		protocol.File("/tmp/out.xlsx"),
	}, out.messages())
}

func TestWorkerReportsFirstFailureOnFlush(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.xlsx")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	enc := &fakeEncoder{appendErr: errors.New("disk full")}
	out := &recorder{}
	w := newWorker(Config{}, path, enc, out)

	w.AddRow(models.Row{1}, "S")
	w.AddRow(models.Row{2}, "S")
	w.FlushSheet("S")

	var gotErr error
	w.Flush(func(_ string, err error) { gotErr = err })
	w.Wait()

	// the second append and the commit are skipped after the first failure
	require.Equal(t, []call{{op: "append", sheet: "S", rows: 1}}, enc.calls)
	require.ErrorContains(t, gotErr, "disk full")
	require.ErrorContains(t, gotErr, `append-row "S"`)
	require.True(t, enc.closed)
	require.NoFileExists(t, path)
	require.Empty(t, out.messages())
}

func TestWorkerFlushErrorMessage(t *testing.T) {
	enc := &fakeEncoder{appendErr: errors.New("boom")}
	out := &recorder{}
	w := newWorker(Config{}, filepath.Join(t.TempDir(), "x.xlsx"), enc, out)

	w.Handle(protocol.Row("S", models.Row{1}))
	w.Handle(protocol.Flush())
	w.Wait()

	msgs := out.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, protocol.TypeError, msgs[0].Type)
	require.Contains(t, msgs[0].Data.Error, "boom")
}

type panicEncoder struct{ fakeEncoder }

func (p *panicEncoder) Append(string, ...models.Row) error {
	panic("encoder exploded")
}

func TestWorkerRecoversFromPanickingCommand(t *testing.T) {
	enc := &panicEncoder{}
	w := newWorker(Config{}, filepath.Join(t.TempDir(), "x.xlsx"), enc, &recorder{})

	w.AddRow(models.Row{1}, "S")
	var gotErr error
	w.Flush(func(_ string, err error) { gotErr = err })
	w.Wait()

	require.ErrorContains(t, gotErr, "encoder exploded")
}

func TestWorkerSecondFlushFails(t *testing.T) {
	enc := &fakeEncoder{path: "p"}
	w := newWorker(Config{}, "p", enc, &recorder{})

	var errs []error
	w.Flush(func(_ string, err error) { errs = append(errs, err) })
	w.Flush(func(_ string, err error) { errs = append(errs, err) })
	w.Wait()

	require.Len(t, errs, 2)
	require.NoError(t, errs[0])
	require.Error(t, errs[1])
}

func TestRunBuildsDocument(t *testing.T) {
	in := &sliceRx{msgs: []protocol.Message{
		protocol.Row("People", models.Row{"name", "age"}),
		protocol.Rows("", []models.Row{{"ann", int64(31)}}),
		protocol.Rows("People", []models.Row{{"bob", int64(42)}}),
		protocol.FlushSheet("People"),
		protocol.Flush(),
	}}
	out := &recorder{}

	require.NoError(t, Run(in, out, Config{TempDir: t.TempDir(), ID: "w1"}))

	msgs := out.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, protocol.TypeFlushSheet, msgs[0].Type)
	require.Equal(t, "People", msgs[0].Data.Name)
	require.Equal(t, protocol.TypeFile, msgs[1].Type)

	path := msgs[1].Data.Path
	require.Contains(t, filepath.Base(path), "excel")
	wb, err := reader.Inspect(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	require.Equal(t, []models.Row{
		{"name", "age"},
		{"ann", int64(31)},
		{"bob", int64(42)},
	}, wb.Sheets[0].Rows)
}

func TestRunDiscardsUnflushedDocument(t *testing.T) {
	dir := t.TempDir()
	in := &sliceRx{msgs: []protocol.Message{
		protocol.Row("S", models.Row{1}),
	}}

	require.NoError(t, Run(in, &recorder{}, Config{TempDir: dir}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunFailsWithoutTempDir(t *testing.T) {
	err := Run(&sliceRx{}, &recorder{}, Config{TempDir: filepath.Join(t.TempDir(), "missing")})
	require.ErrorContains(t, err, "allocate temporary file")
}
