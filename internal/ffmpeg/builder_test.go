package ffmpeg

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestBuildArgsRTSP(t *testing.T) {
	args := BuildArgs(&Params{
		InputURL: "rtsp://admin:p@ss word@10.0.0.2:554/live",
		Scheme:   "rtsp",
		Timeout:  5 * time.Second,
		FPS:      15,
	})

	got := strings.Join(args, " ")
	want := "-hide_banner -nostdin -loglevel level+warning -rtsp_transport tcp -timeout 5000000 " +
		"-i rtsp://admin:p@ss word@10.0.0.2:554/live -an -sn -dn -r 15 -c:v mjpeg -q:v 2 -f image2pipe -"
	if got != want {
		t.Errorf("BuildArgs =\n%s\nwant\n%s", got, want)
	}

	i := slices.Index(args, "-i")
	if args[i+1] != "rtsp://admin:p@ss word@10.0.0.2:554/live" {
		t.Errorf("input URL was split: %q", args[i+1])
	}
}

func TestBuildArgsPerScheme(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		want    []string
		notWant []string
	}{
		{
			name:    "http uses rw_timeout",
			params:  Params{InputURL: "http://cam/video.mjpg", Scheme: "http", Timeout: time.Second},
			want:    []string{"-rw_timeout", "1000000"},
			notWant: []string{"-rtsp_transport"},
		},
		{
			name:    "file realtime",
			params:  Params{InputURL: "/tmp/a.mp4", Scheme: "file", Realtime: true},
			want:    []string{"-re"},
			notWant: []string{"-timeout", "-rtsp_transport"},
		},
		{
			name:    "no fps",
			params:  Params{InputURL: "rtsp://h/x", Scheme: "rtsp"},
			notWant: []string{"-r", "-timeout"},
		},
		{
			name:   "custom quality",
			params: Params{InputURL: "rtsp://h/x", Scheme: "rtsp", Quality: 5},
			want:   []string{"5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := BuildArgs(&tt.params)
			for _, w := range tt.want {
				if !slices.Contains(args, w) {
					t.Errorf("missing %q in %v", w, args)
				}
			}
			for _, nw := range tt.notWant {
				if slices.Contains(args, nw) {
					t.Errorf("unexpected %q in %v", nw, args)
				}
			}
			if args[len(args)-1] != "-" {
				t.Errorf("output must be stdout, got %q", args[len(args)-1])
			}
		})
	}
}

func TestBuildArgsMergesFflags(t *testing.T) {
	args := BuildArgs(&Params{
		InputURL: "rtsp://h/x",
		Scheme:   "rtsp",
		Options:  []OptionType{OptionIgnoreDTS, OptionLowLatency, OptionThreadQueue1024},
	})

	if n := countOf(args, "-fflags"); n != 1 {
		t.Fatalf("-fflags appears %d times in %v", n, args)
	}
	i := slices.Index(args, "-fflags")
	if args[i+1] != "+nobuffer+igndts" {
		t.Errorf("-fflags = %q", args[i+1])
	}
	if slices.Index(args, "-thread_queue_size") > slices.Index(args, "-i") {
		t.Error("input options must precede -i")
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    int
		wantErr bool
	}{
		{"empty", nil, 0, false},
		{"valid", []string{"low_latency", " igndts "}, 2, false},
		{"duplicates collapse", []string{"genpts", "genpts"}, 1, false},
		{"unknown", []string{"turbo"}, 0, true},
		{"exclusive group", []string{"thread_queue_1024", "thread_queue_4096"}, 0, true},
		{"conflict", []string{"genpts", "wallclock_ts"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOptions(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.want {
				t.Errorf("ParseOptions(%v) = %v, want %d options", tt.in, got, tt.want)
			}
		})
	}
}

func countOf(args []string, s string) int {
	n := 0
	for _, a := range args {
		if a == s {
			n++
		}
	}
	return n
}
