package velocity

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testEngine() *Engine {
	return NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		ctx  Context
		want string
	}{
		{
			name: "simple references",
			src:  "Hello $name and ${name}!",
			ctx:  Context{"name": "World"},
			want: "Hello World and World!",
		},
		{
			name: "unresolved references render as written",
			src:  "echo $HOME ${missing} cost $ 5",
			ctx:  Context{},
			want: "echo $HOME ${missing} cost $ 5",
		},
		{
			name: "quiet reference",
			src:  "a$!missing b",
			ctx:  Context{},
			want: "a b",
		},
		{
			name: "method chain",
			src:  "${artifactId.toUpperCase()} $package.replace('.', '/')",
			ctx:  Context{"artifactId": "demo", "package": "org.acme"},
			want: "DEMO org/acme",
		},
		{
			name: "unknown method renders as written",
			src:  "$name.frobnicate()",
			ctx:  Context{"name": "x"},
			want: "$name.frobnicate()",
		},
		{
			name: "set",
			src:  "#set($x = 'a')$x",
			ctx:  Context{},
			want: "a",
		},
		{
			name: "set with interpolated string",
			src:  "#set($g = \"${groupId}.web\")$g",
			ctx:  Context{"groupId": "org.acme"},
			want: "org.acme.web",
		},
		{
			name: "set skipped when value undefined",
			src:  "#set($x = $missing)$x",
			ctx:  Context{"x": "kept"},
			want: "kept",
		},
		{
			name: "if elseif else",
			src:  "#if($kind == \"web\")\nweb\n#elseif($kind == \"cli\")\ncli\n#else\nother\n#end\n",
			ctx:  Context{"kind": "cli"},
			want: "cli\n",
		},
		{
			name: "else branch",
			src:  "#if($kind == 'web')web#{else}other#end",
			ctx:  Context{"kind": "lib"},
			want: "other",
		},
		{
			name: "boolean operators",
			src:  "#if($a && !$missing || $b)yes#end",
			ctx:  Context{"a": "true"},
			want: "yes",
		},
		{
			name: "numeric comparison",
			src:  "#set($n = 3)#if($n >= 3 and $n lt 4)ok#end",
			ctx:  Context{},
			want: "ok",
		},
		{
			name: "foreach list",
			src:  "#foreach($m in [\"a\", \"b\"])\n$foreach.count:$m\n#end\n",
			ctx:  Context{},
			want: "1:a\n2:b\n",
		},
		{
			name: "foreach range",
			src:  "#foreach($i in [1..3])$i#if($foreach.hasNext),#end#end",
			ctx:  Context{},
			want: "1,2,3",
		},
		{
			name: "foreach restores loop variable",
			src:  "#foreach($m in ['x'])$m#end $m",
			ctx:  Context{"m": "outer"},
			want: "x outer",
		},
		{
			name: "escapes",
			src:  `\${name} \$other \#if`,
			ctx:  Context{"name": "x"},
			want: `${name} \$other #if`,
		},
		{
			name: "backslash pairs before a reference",
			src:  `\\$email \\\$email \\\\$email`,
			ctx:  Context{"email": "foo"},
			want: `\foo \$email \\foo`,
		},
		{
			name: "backslash run before plain text",
			src:  `C:\\dir \\$ 5`,
			ctx:  Context{},
			want: `C:\\dir \\$ 5`,
		},
		{
			name: "comments and unparsed blocks",
			src:  "a ## line comment\nb#* block *#c#[[$raw #if]]#",
			ctx:  Context{"raw": "no"},
			want: "a bc$raw #if",
		},
		{
			name: "directive lines are gobbled",
			src:  "<deps>\n    #if($junit)\n    <dep/>\n    #end\n</deps>\n",
			ctx:  Context{"junit": "true"},
			want: "<deps>\n    <dep/>\n</deps>\n",
		},
		{
			name: "crlf directive lines are gobbled",
			src:  "a\r\n#if($x)\r\nb\r\n#end\r\nc",
			ctx:  Context{"x": "1"},
			want: "a\r\nb\r\nc",
		},
		{
			name: "symbol preamble",
			src:  "#set( $symbol_pound = '#' )\n${symbol_pound}include <x>\n",
			ctx:  Context{},
			want: "#include <x>\n",
		},
		{
			name: "list methods",
			src:  "#set($l = ['a', 'b'])$l.size() $l.get(1) $l.contains('a') $l",
			ctx:  Context{},
			want: "2 b true [a, b]",
		},
		{
			name: "string methods",
			src:  "${s.substring(1, 3)} ${s.length()} ${s.startsWith('ab')} ${s.replaceAll('(b)(c)', '$2$1')} ${s.split('c').size()}",
			ctx:  Context{"s": "abcd"},
			want: "bc 4 true acbd 2",
		},
		{
			name: "empty property",
			src:  "#if($s.empty)empty#end",
			ctx:  Context{"s": ""},
			want: "empty",
		},
	}

	e := testEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.name, tt.src, tt.ctx)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_DoesNotModifyContext(t *testing.T) {
	ctx := Context{"a": "1"}
	if _, err := testEngine().Evaluate("t", "#set($a = '2')#set($b = '3')", ctx); err != nil {
		t.Fatal(err)
	}
	if ctx["a"] != "1" {
		t.Errorf("context value changed to %v", ctx["a"])
	}
	if _, ok := ctx["b"]; ok {
		t.Error("context gained a key")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"missing end", "#if($x)\nno end", 2, "missing #end"},
		{"stray end", "text\n#end", 2, "unexpected #end"},
		{"unterminated string", "#set($x = 'abc)", 1, "unterminated string"},
		{"bad set", "#set(x = 1)", 1, "#set expects a reference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("t.vm", tt.src)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if perr.Line != tt.line {
				t.Errorf("line = %d, want %d", perr.Line, tt.line)
			}
			if !strings.Contains(perr.Error(), tt.msg) {
				t.Errorf("error %q should contain %q", perr.Error(), tt.msg)
			}
		})
	}
}

func TestEvaluate_MethodFailure(t *testing.T) {
	_, err := testEngine().Evaluate("t.vm", "x\n${name.substring(5)}", Context{"name": "abc"})
	var eerr *EvalError
	if !errors.As(err, &eerr) {
		t.Fatalf("expected EvalError, got %v", err)
	}
	if eerr.Line != 2 || eerr.Column != 1 {
		t.Errorf("position = %d:%d, want 2:1", eerr.Line, eerr.Column)
	}
}

func TestEvaluatePath(t *testing.T) {
	ctx := Context{
		"packageInPathFormat": "org/acme",
		"artifactId":          "demo",
		"rootArtifactId":      "root",
	}
	got := EvaluatePath("src/main/java/__packageInPathFormat__/__rootArtifactId__-__artifactId__/__unknown__.java", ctx)
	want := "src/main/java/org/acme/root-demo/__unknown__.java"
	if got != want {
		t.Errorf("EvaluatePath() = %q, want %q", got, want)
	}
}

func ExampleEngine_Evaluate() {
	engine := NewEngine(zerolog.Nop())
	out, _ := engine.Evaluate("App.java", "package ${package};", Context{"package": "org.acme"})
	fmt.Println(out)
	// Output: package org.acme;
}
