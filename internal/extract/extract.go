// Package extract pulls candidate file-path operands out of raw shell
// commands and structured tool-call arguments.
package extract

import (
	"path/filepath"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// PathExtractor is stateless; a parser is created per call.
type PathExtractor struct{}

// NewPathExtractor creates a PathExtractor.
func NewPathExtractor() *PathExtractor {
	return &PathExtractor{}
}

// prefixCommands wrap another command; the real command follows them.
var prefixCommands = map[string]bool{
	"sudo": true, "env": true, "nice": true, "nohup": true, "time": true,
}

// fileCommands take file paths as their trailing non-flag arguments.
var fileCommands = map[string]bool{
	"cat": true, "less": true, "more": true, "head": true, "tail": true,
	"rm": true, "cp": true, "mv": true, "ln": true, "touch": true,
	"mkdir": true, "rmdir": true, "chmod": true, "chown": true, "chgrp": true,
	"grep": true, "egrep": true, "fgrep": true, "rg": true,
	"sed": true, "awk": true, "sort": true, "uniq": true, "wc": true,
	"diff": true, "stat": true, "file": true, "tee": true, "truncate": true,
	"shred": true, "ls": true, "source": true, ".": true,
	"vim": true, "vi": true, "nvim": true, "nano": true, "emacs": true, "code": true, "open": true,
	"tar": true, "zip": true, "unzip": true, "gzip": true, "gunzip": true,
	"bash": true, "sh": true, "zsh": true,
	"python": true, "python3": true, "node": true, "ruby": true, "perl": true,
}

// valueFlags consume the following token as their value.
var valueFlags = map[string]bool{
	"-o": true, "-f": true, "-i": true, "-e": true, "-n": true, "-c": true,
}

var assignmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// ExtractFromCommand returns the tokens of command that are plausibly file
// paths. It never fails: commands the shell parser rejects are split on "|"
// and whitespace instead.
func (e *PathExtractor) ExtractFromCommand(command string) []string {
	if strings.TrimSpace(command) == "" {
		return []string{}
	}

	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return fallbackExtract(command)
	}

	paths := []string{}
	var redirects []string
	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.Stmt:
			for _, r := range n.Redirs {
				if r.Word != nil && isFileRedirect(r.Op) {
					redirects = append(redirects, wordLiteral(r.Word))
				}
			}
		case *syntax.CallExpr:
			words := make([]string, 0, len(n.Args))
			for _, w := range n.Args {
				words = append(words, wordLiteral(w))
			}
			paths = append(paths, pathsFromTokens(words)...)
		}
		return true
	})
	return append(paths, redirects...)
}

// ExtractFromTool maps structured tool-call arguments to paths. Unknown tools
// and missing fields yield an empty list.
func (e *PathExtractor) ExtractFromTool(toolName string, args map[string]any) []string {
	paths := []string{}
	switch strings.ToLower(toolName) {
	case "read", "write", "edit":
		paths = appendField(paths, args, "filePath", "file_path", "path")
	case "bash":
		if cmd, ok := args["command"].(string); ok {
			paths = append(paths, e.ExtractFromCommand(cmd)...)
		}
	case "glob":
		paths = appendField(paths, args, "pattern")
		paths = appendField(paths, args, "path")
	}
	return paths
}

// appendField appends the first non-empty string among keys.
func appendField(dst []string, args map[string]any, keys ...string) []string {
	for _, k := range keys {
		if s, ok := args[k].(string); ok && s != "" {
			return append(dst, s)
		}
	}
	return dst
}

func fallbackExtract(command string) []string {
	paths := []string{}
	for _, segment := range strings.Split(command, "|") {
		paths = append(paths, pathsFromTokens(strings.Fields(segment))...)
	}
	return paths
}

// pathsFromTokens locates the base command past assignments and prefix
// commands, then collects its path operands.
func pathsFromTokens(tokens []string) []string {
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if assignmentRe.MatchString(tok) {
			i++
			continue
		}
		if prefixCommands[filepath.Base(tok)] {
			i++
			// flags and numeric values of the prefix itself (sudo -u, nice -n 10)
			for i < len(tokens) && (strings.HasPrefix(tokens[i], "-") || isNumeric(tokens[i])) {
				i++
			}
			continue
		}
		break
	}
	if i >= len(tokens) {
		return nil
	}

	base := filepath.Base(tokens[i])
	args := tokens[i+1:]

	var paths []string
	if fileCommands[base] {
		for j := 0; j < len(args); j++ {
			arg := args[j]
			if strings.HasPrefix(arg, "-") {
				if valueFlags[arg] {
					j++
				}
				continue
			}
			if arg != "" {
				paths = append(paths, arg)
			}
		}
		return paths
	}

	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") && LooksLikePath(arg) {
			paths = append(paths, arg)
		}
	}
	return paths
}

// LooksLikePath is the heuristic for arguments of commands outside the
// file-command table. Only http(s) URLs are kept out of the "contains /"
// rule; other schemes such as file:// or s3:// name real locations.
func LooksLikePath(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~") ||
		strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
		return true
	}
	if strings.Contains(s, "/") && !strings.HasPrefix(s, "http") {
		return true
	}
	if dot := strings.LastIndex(s, "."); dot >= 0 {
		ext := s[dot+1:]
		return len(ext) > 0 && len(ext) <= 5
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isFileRedirect(op syntax.RedirOperator) bool {
	switch op {
	case syntax.RdrOut, syntax.AppOut, syntax.RdrIn, syntax.RdrAll, syntax.AppAll:
		return true
	}
	return false
}

// wordLiteral joins a word's parts with quotes removed. Expansions are kept
// in their printed form.
func wordLiteral(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		writePart(&sb, part)
	}
	return sb.String()
}

func writePart(sb *strings.Builder, part syntax.WordPart) {
	switch p := part.(type) {
	case *syntax.Lit:
		sb.WriteString(p.Value)
	case *syntax.SglQuoted:
		sb.WriteString(p.Value)
	case *syntax.DblQuoted:
		for _, inner := range p.Parts {
			writePart(sb, inner)
		}
	default:
		syntax.NewPrinter().Print(sb, part)
	}
}
