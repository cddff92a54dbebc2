package pathenv

import (
	"regexp"
	"strings"
)

// Categories, in report order.
const (
	CategorySystem     = "System"
	CategoryDeveloper  = "Apple / Xcode / Developer"
	CategoryHomebrew   = "Homebrew"
	CategoryPython     = "Python"
	CategoryNode       = "Node.js"
	CategoryJava       = "Java"
	CategoryGo         = "Go"
	CategoryRust       = "Rust"
	CategoryRuby       = "Ruby"
	CategoryAndroid    = "Android"
	CategoryCloud      = "Cloud / DevOps"
	CategoryDatabricks = "Databricks"
	CategoryDatabases  = "Databases"
	CategoryUserLocal  = "Dotfiles / User Local"
	CategoryOther      = "Other / Unknown"
)

// CategoryPriority is the order groups are reported in.
var CategoryPriority = []string{
	CategorySystem,
	CategoryDeveloper,
	CategoryHomebrew,
	CategoryPython,
	CategoryNode,
	CategoryJava,
	CategoryGo,
	CategoryRust,
	CategoryRuby,
	CategoryAndroid,
	CategoryCloud,
	CategoryDatabricks,
	CategoryDatabases,
	CategoryUserLocal,
	CategoryOther,
}

var (
	systemPrefixes = []string{"/System", "/bin", "/sbin", "/usr/bin", "/usr/sbin", "/usr/libexec"}
	devPrefixes    = []string{"/Applications/Xcode.app", "/Library/Developer", "/Developer"}
	brewPrefixes   = []string{"/opt/homebrew", "/usr/local"}

	nodeVersioned   = regexp.MustCompile(`/versions/node/v\d+`)
	pythonVersioned = regexp.MustCompile(`/python\d+(\.\d+)?/`)
)

type bucket struct {
	category string
	needles  []string
}

// keywordBuckets are tried in order; the first needle found wins.
func keywordBuckets(home string) []bucket {
	return []bucket{
		{CategoryPython, []string{"pyenv", "conda", "anaconda", "miniconda", "venv", "virtualenv", "pipx", "python"}},
		{CategoryNode, []string{"nvm", "node", "npm", "yarn", "pnpm"}},
		{CategoryJava, []string{"java", "jdk", "jre", "maven", "gradle"}},
		{CategoryGo, []string{"/go", "gobin", "golang"}},
		{CategoryRust, []string{"cargo", ".cargo", "rustup"}},
		{CategoryRuby, []string{"rbenv", "rvm", "ruby", "bundler"}},
		{CategoryAndroid, []string{"android", "sdk"}},
		{CategoryUserLocal, []string{home, "~", ".local", ".dotfiles"}},
		{CategoryCloud, []string{"aws", "gcloud", "google-cloud-sdk", "azure", "az", "kubectl", "helm", "terraform"}},
		{CategoryDatabricks, []string{"databricks"}},
		{CategoryDatabases, []string{"postgres", "mysql", "mariadb", "mongo", "redis"}},
	}
}

// Classify returns the category of a PATH directory and the rule that
// matched it. Strong prefixes win over keywords.
func Classify(path, home string) (category, reason string) {
	switch {
	case hasAnyPrefix(path, systemPrefixes):
		return CategorySystem, "system prefix"
	case hasAnyPrefix(path, devPrefixes):
		return CategoryDeveloper, "developer tools prefix"
	case hasAnyPrefix(path, brewPrefixes):
		if strings.Contains(strings.ToLower(path), "/cellar/") {
			return CategoryHomebrew, "brew cellar"
		}
		return CategoryHomebrew, "brew prefix"
	}

	lower := strings.ToLower(path)
	for _, b := range keywordBuckets(home) {
		for _, n := range b.needles {
			if n != "" && strings.Contains(lower, strings.ToLower(n)) {
				return b.category, "matched '" + n + "'"
			}
		}
	}

	switch {
	case nodeVersioned.MatchString(lower):
		return CategoryNode, "node versioned path"
	case pythonVersioned.MatchString(lower):
		return CategoryPython, "python versioned path"
	}
	return CategoryOther, "no match"
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
