package scope

// PathPattern is a substring matched against a resolved absolute path.
type PathPattern struct {
	Substring string `yaml:"path" toml:"path"`
	Score     int    `yaml:"score" toml:"score"`
	Reason    string `yaml:"reason,omitempty" toml:"reason,omitempty"`
}

// Sensitive locations. Checked before allowed locations so that, e.g., a
// .ssh directory under /tmp is still flagged.
var defaultSensitive = []PathPattern{
	{"/.ssh", 85, "SSH keys and configuration"},
	{"/.aws", 85, "AWS credentials"},
	{"/.gnupg", 85, "GPG keyring"},
	{"/.git-credentials", 85, "Git credentials"},
	{"/.password-store", 85, "Password store"},
	{"/.config/gcloud", 80, "Google Cloud credentials"},
	{"/.azure", 80, "Azure credentials"},
	{"/.kube/config", 80, "Kubernetes credentials"},
	{"/.netrc", 80, "Network credentials"},
	{"/.config/gh/hosts.yml", 80, "GitHub CLI token"},
	{"/.docker/config.json", 75, "Docker registry credentials"},
	{"/.npmrc", 70, "npm credentials"},
	{"/.pypirc", 70, "PyPI credentials"},
	{"/etc/shadow", 90, "System password hashes"},
	{"/etc/sudoers", 90, "Sudoers configuration"},
	{"/Library/Keychains", 90, "macOS keychain"},
	{"/.bashrc", 65, "Shell startup file"},
	{"/.zshrc", 65, "Shell startup file"},
	{"/.bash_profile", 65, "Shell startup file"},
	{"/.profile", 60, "Shell startup file"},
	{"/.bash_history", 60, "Shell history"},
	{"/.zsh_history", 60, "Shell history"},
	{"/etc/passwd", 60, "System accounts file"},
}

// Known-benign out-of-scope locations: temp dirs, package caches, build output.
var defaultAllowed = []string{
	"/tmp/",
	"/private/tmp/",
	"/var/tmp/",
	"/var/folders/",
	"/private/var/folders/",
	"/dev/null",
	"/.cache/",
	"/.npm/",
	"/.yarn/",
	"/.pnpm-store/",
	"/.cargo/registry/",
	"/.rustup/",
	"/go/pkg/mod/",
	"/.m2/repository/",
	"/.gradle/caches/",
	"/node_modules/",
	"/site-packages/",
	"/usr/share/",
	"/usr/include/",
}

var defaultSuspicious = []PathPattern{
	{"/Documents/", 45, "User documents"},
	{"/Desktop/", 40, "User desktop"},
	{"/Downloads/", 35, "User downloads"},
	{"/Pictures/", 40, "User pictures"},
	{"/Library/Mail/", 60, "Mail data"},
	{"/Library/Messages/", 60, "Messages data"},
	{"/Library/Cookies/", 65, "Browser cookies"},
	{"/Library/Application Support/Google/Chrome/", 70, "Browser profile data"},
	{"/Library/Application Support/Firefox/", 70, "Browser profile data"},
	{"/.mozilla/", 65, "Browser profile data"},
	{"/.config/google-chrome/", 70, "Browser profile data"},
	{"/Library/LaunchAgents/", 70, "Launch agents"},
	{"/Library/LaunchDaemons/", 75, "Launch daemons"},
	{"/etc/cron", 60, "Scheduled tasks"},
	{"/etc/", 40, "System configuration"},
	{"/usr/bin/", 50, "System binaries"},
	{"/usr/sbin/", 50, "System binaries"},
	{"/usr/local/bin/", 50, "System binaries"},
	{"/bin/", 50, "System binaries"},
	{"/sbin/", 50, "System binaries"},
	{"/System/", 55, "macOS system files"},
	{"/var/log/", 35, "System logs"},
}
