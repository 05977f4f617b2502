package discovery

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFileName is read from the pool root when present. It uses
// gitignore syntax.
const IgnoreFileName = ".convoragignore"

// ignoreRule is one compiled pattern line.
type ignoreRule struct {
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
}

// ignoreSet decides which pool paths are skipped during a build. The last
// matching rule wins, so "!keep.pdf" can re-include a file.
type ignoreSet struct {
	rules []ignoreRule
}

func loadIgnoreSet(path string, extra []string) *ignoreSet {
	s := &ignoreSet{}
	for _, p := range extra {
		s.add(p)
	}
	f, err := os.Open(path)
	if err != nil {
		return s
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s.add(sc.Text())
	}
	return s
}

func (s *ignoreSet) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	var r ignoreRule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		r.anchored = true
	}
	if line == "" {
		return
	}
	re, err := regexp.Compile("^" + globToRegex(line) + "$")
	if err != nil {
		return
	}
	r.re = re
	s.rules = append(s.rules, r)
}

// match reports whether rel (slash separated, relative to the pool root)
// is ignored.
func (s *ignoreSet) match(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	ignored := false
	for _, r := range s.rules {
		if r.matches(rel, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r ignoreRule) matches(rel string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	if r.anchored {
		return r.re.MatchString(rel)
	}
	return r.re.MatchString(rel) || r.re.MatchString(rel[strings.LastIndex(rel, "/")+1:])
}

// globToRegex translates one gitignore glob. "*" and "?" stay within a
// path segment; "**/" spans any number of directories.
func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch {
		case c == '*' && strings.HasPrefix(glob[i:], "**/"):
			b.WriteString("(?:.*/)?")
			i += 2
		case c == '*' && strings.HasPrefix(glob[i:], "**"):
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		case c == '\\' && i+1 < len(glob):
			i++
			b.WriteString(regexp.QuoteMeta(string(glob[i])))
		case c == '[':
			if j := strings.IndexByte(glob[i:], ']'); j > 0 {
				b.WriteString(glob[i : i+j+1])
				i += j
				continue
			}
			b.WriteString(`\[`)
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
