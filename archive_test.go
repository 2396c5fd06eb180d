package unbox

import (
	"bytes"
	"strings"
	"syscall"
	"testing"
)

func TestSanitizeEntryName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"file.txt", "file.txt", true},
		{"dir/file.txt", "dir/file.txt", true},
		{"./dir/file.txt", "dir/file.txt", true},
		{"dir//file.txt", "dir/file.txt", true},
		{`windows\style\path`, "windows/style/path", true},
		{"../../etc/passwd", "", false},
		{"/etc/passwd", "", false},
		{"dir/../../escape", "", false},
		{`c:\windows\system32`, "", false},
		{`\\server\share`, "", false},
		{".", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := sanitizeEntryName(tc.in)
		if ok != tc.ok {
			t.Errorf("sanitizeEntryName(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("sanitizeEntryName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// interruptedReader fails with EINTR a few times before delivering data,
// mimicking a signal-interrupted read.
type interruptedReader struct {
	r          *strings.Reader
	interrupts int
}

func (ir *interruptedReader) Read(b []byte) (int, error) {
	if ir.interrupts > 0 {
		ir.interrupts--
		return 0, syscall.EINTR
	}
	return ir.r.Read(b)
}

func TestCopyWithRetryRetriesInterruptedReads(t *testing.T) {
	src := &interruptedReader{r: strings.NewReader("all the data"), interrupts: 3}
	var dst bytes.Buffer

	n, err := copyWithRetry(&dst, src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if dst.String() != "all the data" {
		t.Errorf("copied %q", dst.String())
	}
	if n != int64(len("all the data")) {
		t.Errorf("reported %d bytes written", n)
	}
}

func TestProgressReaderAbsorbsInterrupts(t *testing.T) {
	pr := &progressReader{
		r:        &interruptedReader{r: strings.NewReader("data"), interrupts: 2},
		progress: newProgressIndicator(4, true, nil),
	}
	buf := make([]byte, 16)
	n, err := pr.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "data" {
		t.Errorf("read %q", buf[:n])
	}
}
