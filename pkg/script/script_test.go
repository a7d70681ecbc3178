package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# ${name}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := `
def render():
    text = read_file("README.md")
    return text.replace("${name}", properties["artifactId"])

write_file("docs/README.md", render())
delete("README.md")
if_missing = not exists("README.md")
move("docs/README.md", "README.txt")
log("done with " + properties["artifactId"])
summary = {"files": 1, "names": ("a", "b")}
_hidden = 1
`
	r := NewRunner(time.Second, zerolog.Nop())
	res, err := r.Run(context.Background(), "post.star", src, dir, map[string]string{"artifactId": "shop"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "README.txt"))
	if err != nil || string(data) != "# shop\n" {
		t.Errorf("README.txt = %q, %v", data, err)
	}
	if res.Output["if_missing"] != true {
		t.Errorf("if_missing = %v", res.Output["if_missing"])
	}
	if _, ok := res.Output["_hidden"]; ok {
		t.Error("underscore globals must not be returned")
	}
	if _, ok := res.Output["render"]; ok {
		t.Error("functions must not be returned")
	}
	summary := res.Output["summary"].(map[string]interface{})
	if summary["files"] != int64(1) || !reflect.DeepEqual(summary["names"], []interface{}{"a", "b"}) {
		t.Errorf("summary = %v", summary)
	}
	if want := []string{"README.md", "README.txt", "docs/README.md"}; !reflect.DeepEqual(res.Touched, want) {
		t.Errorf("Touched = %v, want %v", res.Touched, want)
	}
	if !reflect.DeepEqual(res.Logs, []string{"done with shop"}) {
		t.Errorf("Logs = %v", res.Logs)
	}
}

func TestRunner_Confinement(t *testing.T) {
	r := NewRunner(time.Second, zerolog.Nop())
	tests := map[string]string{
		"parent":   `write_file("../escape.txt", "x")`,
		"absolute": `read_file("/etc/passwd")`,
		"root":     `delete(".")`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if _, err := r.Run(context.Background(), "x.star", src, dir, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunner_Timeout(t *testing.T) {
	src := `
def spin():
    n = 0
    for i in range(1000000000):
        n += i
    return n

spin()
`
	r := NewRunner(50*time.Millisecond, zerolog.Nop())
	res, err := r.Run(context.Background(), "spin.star", src, t.TempDir(), nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if res == nil || res.Error == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunner_SyntaxError(t *testing.T) {
	r := NewRunner(0, zerolog.Nop())
	res, err := r.Run(context.Background(), "bad.star", "x = (", t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Error == "" {
		t.Error("expected result error message")
	}
}
