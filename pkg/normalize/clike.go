package normalize

var cKeywords = []string{
	"auto", "break", "case", "char", "const", "continue", "default", "do", "double", "else",
	"enum", "extern", "float", "for", "goto", "if", "inline", "int", "long", "register",
	"restrict", "return", "short", "signed", "sizeof", "static", "struct", "switch",
	"typedef", "union", "unsigned", "void", "volatile", "while", "_Bool", "_Complex",
	"_Alignas", "_Alignof", "_Atomic", "_Noreturn", "_Static_assert", "_Thread_local",
}

var cppKeywords = []string{
	"alignas", "alignof", "and", "and_eq", "asm", "bitand", "bitor", "bool", "catch",
	"char16_t", "char32_t", "char8_t", "class", "compl", "concept", "consteval", "constexpr",
	"constinit", "const_cast", "co_await", "co_return", "co_yield", "decltype", "delete",
	"dynamic_cast", "explicit", "export", "false", "final", "friend", "mutable", "namespace",
	"new", "noexcept", "not", "not_eq", "nullptr", "operator", "or", "or_eq", "override",
	"private", "protected", "public", "reinterpret_cast", "requires", "static_assert",
	"static_cast", "template", "this", "thread_local", "throw", "true", "try", "typeid",
	"typename", "using", "virtual", "wchar_t", "xor", "xor_eq",
}

var cPreprocessor = []string{
	"include", "define", "undef", "ifdef", "ifndef", "endif", "pragma",
}

// cStandardNames are library names that carry program structure the way keywords do.
var cStandardNames = []string{
	// stdio
	"printf", "scanf", "fprintf", "sprintf", "snprintf", "fscanf", "sscanf", "puts", "gets",
	"fgets", "fputs", "putchar", "getchar", "fopen", "fclose", "fread", "fwrite", "fflush",
	"feof", "perror", "stdin", "stdout", "stderr", "FILE", "EOF", "NULL",
	// stdlib, string, math
	"malloc", "calloc", "realloc", "free", "exit", "abort", "atoi", "atof", "atol", "abs",
	"rand", "srand", "qsort", "bsearch", "size_t", "memcpy", "memset", "memmove", "memcmp",
	"strlen", "strcpy", "strncpy", "strcat", "strncat", "strcmp", "strncmp", "strchr",
	"strrchr", "strstr", "strtok", "sqrt", "pow", "sin", "cos", "tan", "floor", "ceil",
	"fabs", "log", "exp", "time",
	// C++ standard library
	"std", "cout", "cin", "cerr", "endl", "string", "vector", "map", "set", "pair",
	"make_pair", "sort", "swap", "min", "max", "begin", "end", "push_back", "size",
}

// NewCLike returns the normalizer shared by C and C++.
func NewCLike() Normalizer {
	return &clikeNormalizer{dialect: dialect{
		lineComment:    "//",
		blockComments:  []delims{{"/*", "*/"}},
		stringQuotes:   `"`,
		stringPrefixes: map[string]bool{"l": true, "u": true, "u8": true},
		rawPrefixes:    map[string]bool{"R": true, "LR": true, "uR": true, "UR": true, "u8R": true},
		charQuote:      '\'',
		digitSeparator: '\'',
		macros:         true,
		punct:          "(){}[];,=+-*/%<>&|!^~?:.#",
		reserved: wordSet(cKeywords, cppKeywords, cPreprocessor, cStandardNames,
			[]string{StringPlaceholder, CharPlaceholder, MacroPlaceholder}),
	}}
}

type clikeNormalizer struct {
	dialect dialect
}

// Normalize implements Normalizer.
func (n *clikeNormalizer) Normalize(text string) CanonicalText {
	return n.dialect.canonicalize(text)
}
