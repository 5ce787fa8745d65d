package parser

import (
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// Table-Driven Tests: Demuxer
// =============================================================================

func TestDemuxer_Feed(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
	}{
		{"lf", []string{"a\nb\n"}, []string{"a", "b"}},
		{"cr", []string{"a\rb\r"}, []string{"a", "b"}},
		{"crlf", []string{"a\r\nb\r\n"}, []string{"a", "b"}},
		{"blank lines collapse", []string{"a\n\n\n\rb\n"}, []string{"a", "b"}},
		{"leading terminators", []string{"\r\n\nhello\n"}, []string{"hello"}},
		{"no terminator flushed at end", []string{"tail"}, []string{"tail"}},
		{"split line", []string{"hel", "lo\nwor", "ld"}, []string{"hello", "world"}},
		{"cr then lf across chunks", []string{"abc\r", "\ndef"}, []string{"abc", "def"}},
		{"terminator run across chunks", []string{"a\r", "\r", "\n\n", "b"}, []string{"a", "b"}},
		{"only terminators", []string{"\r\n", "\n\r"}, nil},
		{"empty chunks", []string{"", "x", "", "\n"}, []string{"x"}},
		{"whitespace line kept", []string{"a\n  \nb"}, []string{"a", "  ", "b"}},
		{"ffmpeg status redraw", []string{"frame=1 bitrate=1 speed=1x\rframe=2 bitrate=1 speed=1x\r"},
			[]string{"frame=1 bitrate=1 speed=1x", "frame=2 bitrate=1 speed=1x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDemuxer()
			var got []string
			for _, c := range tt.chunks {
				got = append(got, d.Feed([]byte(c), false)...)
			}
			got = append(got, d.Feed(nil, true)...)

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("lines = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDemuxer_ByteAtATime(t *testing.T) {
	input := "[info] one\r\n[error] two\rthree\n\n"
	d := NewDemuxer()

	var got []string
	for i := 0; i < len(input); i++ {
		got = append(got, d.Feed([]byte{input[i]}, false)...)
	}
	got = append(got, d.Feed(nil, true)...)

	want := []string{"[info] one", "[error] two", "three"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestDemuxer_FinalFlush(t *testing.T) {
	d := NewDemuxer()
	if got := d.Feed([]byte("partial"), false); got != nil {
		t.Fatalf("partial line emitted early: %q", got)
	}
	if d.Pending() != len("partial") {
		t.Errorf("Pending() = %d", d.Pending())
	}
	if got := d.Feed([]byte(" line"), true); !reflect.DeepEqual(got, []string{"partial line"}) {
		t.Errorf("final = %q", got)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() after final = %d", d.Pending())
	}
}

func TestDemuxer_ChunkReuse(t *testing.T) {
	// Callers reuse their read buffer; buffered bytes must be copies.
	d := NewDemuxer()
	buf := []byte("abc")
	d.Feed(buf, false)
	copy(buf, "xyz")
	got := d.Feed([]byte("\n"), false)
	if !reflect.DeepEqual(got, []string{"abc"}) {
		t.Errorf("lines = %q, want [abc]", got)
	}
}

func TestDemuxer_UTF8(t *testing.T) {
	d := NewDemuxer()
	euro := []byte("€") // 3 bytes split across chunks

	var got []string
	got = append(got, d.Feed(append([]byte("price "), euro[:1]...), false)...)
	got = append(got, d.Feed(append(euro[1:], '\n'), false)...)
	got = append(got, d.Feed([]byte{'b', 'a', 'd', 0xff, '\n'}, false)...)

	want := []string{"price €", "bad�"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestDemuxer_Push(t *testing.T) {
	d := NewDemuxer()
	var got []string
	d.Push([]byte("a\nb"), true, func(line string) { got = append(got, line) })
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("Push lines = %q", got)
	}
}

func BenchmarkDemuxer_Feed(b *testing.B) {
	chunk := []byte(strings.Repeat("[info] frame=  120 fps= 30 q=28.0 size=256kB\r\n", 64))
	d := NewDemuxer()

	b.SetBytes(int64(len(chunk)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Push(chunk, false, func(string) {})
	}
}
