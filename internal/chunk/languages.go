package chunk

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageByName maps a language name to its tree-sitter grammar.
var languageByName = map[string]*sitter.Language{
	"go":         golang.GetLanguage(),
	"python":     python.GetLanguage(),
	"javascript": javascript.GetLanguage(),
	"typescript": typescript.GetLanguage(),
	"tsx":        tsx.GetLanguage(),
	"rust":       rust.GetLanguage(),
	"java":       java.GetLanguage(),
	"c":          c.GetLanguage(),
	"cpp":        cpp.GetLanguage(),
	"csharp":     csharp.GetLanguage(),
	"ruby":       ruby.GetLanguage(),
	"php":        php.GetLanguage(),
}

// extToLanguage maps file extensions to language names.
// Extensions without an entry fall back to heuristic chunking.
var extToLanguage = map[string]string{
	".go":  "go",
	".py":  "python",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "tsx",
	".rs":  "rust",
	".java": "java",
	".c":   "c",
	".h":   "c",
	".cpp": "cpp",
	".hpp": "cpp",
	".cs":  "csharp",
	".rb":  "ruby",
	".php": "php",
}

// LanguageForExtension returns the language name for a file extension,
// or "" when no grammar is available.
func LanguageForExtension(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return extToLanguage[ext]
}

// grammarFor returns the tree-sitter grammar for a language name.
func grammarFor(language string) (*sitter.Language, bool) {
	lang, ok := languageByName[language]
	return lang, ok
}

// commentTypes are node types merged into the following declaration.
var commentTypes = map[string]bool{
	"comment":       true,
	"line_comment":  true,
	"block_comment": true,
}
