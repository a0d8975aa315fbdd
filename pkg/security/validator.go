package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// PathValidator checks file targets against a working directory.
type PathValidator struct {
	workDir string
}

func NewPathValidator(workDir string) *PathValidator {
	if workDir == "" {
		workDir = "."
	}
	return &PathValidator{workDir: workDir}
}

// ValidatePath returns an error when path escapes the working directory
// or touches a sensitive location.
func (v *PathValidator) ValidatePath(path string) error {
	if containsSuspiciousPattern(path) {
		return fmt.Errorf("%w: %s", ErrSensitivePath, path)
	}

	cleaned := filepath.Clean(path)

	absPath := cleaned
	if !filepath.IsAbs(cleaned) {
		absPath = filepath.Join(v.workDir, cleaned)
	}

	relPath, err := filepath.Rel(v.workDir, absPath)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrPathTraversal, path)
	}
	return nil
}

var suspiciousPatterns = []string{
	"/etc/",
	"/proc/",
	"/sys/",
	"/dev/",
	"/root/",
	".ssh/",
	".aws/",
	".gcp/",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
	".env",
	"credentials",
	"secrets",
}

func containsSuspiciousPattern(path string) bool {
	lowerPath := strings.ToLower(filepath.ToSlash(path))
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(lowerPath, pattern) {
			return true
		}
	}
	return false
}

// CommandValidator checks shell commands for destructive or injected forms.
type CommandValidator struct {
	blockedCommands []string
	blockedPatterns []*regexp.Regexp
}

func NewCommandValidator() *CommandValidator {
	return &CommandValidator{
		blockedCommands: []string{
			"rm -rf /",
			"dd if=/dev/zero",
			"mkfs",
			":(){ :|:& };:",
		},
		blockedPatterns: []*regexp.Regexp{
			regexp.MustCompile(`rm.*-rf.*/$`),
			regexp.MustCompile(`chmod.*777`),
			regexp.MustCompile(`curl.*\|.*sh`),
			regexp.MustCompile(`wget.*\|.*sh`),
		},
	}
}

// ValidateCommand returns ErrBlockedCommand for destructive commands and
// ErrCommandInjection when several shell metacharacters are combined.
func (v *CommandValidator) ValidateCommand(cmd string) error {
	lowerCmd := strings.ToLower(strings.TrimSpace(cmd))

	for _, blocked := range v.blockedCommands {
		if strings.Contains(lowerCmd, blocked) {
			return fmt.Errorf("%w: %s", ErrBlockedCommand, blocked)
		}
	}
	for _, re := range v.blockedPatterns {
		if re.MatchString(lowerCmd) {
			return fmt.Errorf("%w: %s", ErrBlockedCommand, re.String())
		}
	}

	if containsCommandInjection(cmd) {
		return ErrCommandInjection
	}
	return nil
}

var injectionPatterns = []string{";", "&&", "||", "|", "`", "$(", ">", "<"}

// containsCommandInjection flags commands combining three or more
// distinct metacharacter forms. One or two are common in legitimate use.
func containsCommandInjection(cmd string) bool {
	dangerousCount := 0
	for _, pattern := range injectionPatterns {
		if strings.Contains(cmd, pattern) {
			dangerousCount++
		}
	}
	return dangerousCount >= 3
}
