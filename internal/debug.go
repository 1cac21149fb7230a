package internal

import (
	"fmt"
	"log"
	"os"
	"os/user"
	"regexp"
	"sort"
	"strings"

	"github.com/earthboundkid/versioninfo/v2"
)

const envPrefix = "PNGOPT_"

var sensitiveRegex = regexp.MustCompile(`(?i)(PASSWORD|API_KEY|ACCESS_KEY|SECRET|TOKEN)`)

func ShowVersion() {
	log.Printf("Version: %s\n", versioninfo.Short())
}

func EnvironmentVars() {
	log.Println("Environment variables")
	for _, line := range environmentLines(os.Environ()) {
		log.Println(line)
	}
}

// environmentLines renders the PNGOPT_* entries of environ sorted by key,
// masking values whose key looks like a credential.
func environmentLines(environ []string) []string {
	var entries [][2]string
	for _, entry := range environ {
		key, value, _ := strings.Cut(entry, "=")
		if !strings.HasPrefix(key, envPrefix) {
			continue
		}
		if sensitiveRegex.MatchString(key) {
			value = "********"
		}
		entries = append(entries, [2]string{key, value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i][0] < entries[j][0] })

	lines := make([]string, 0, len(entries))
	for _, kv := range entries {
		lines = append(lines, fmt.Sprintf("  %s: %s", kv[0], kv[1]))
	}
	return lines
}

// UserInfo logs who the process runs as and warns about targets owned by
// another user: a replaced file is recreated, so it changes owner.
func UserInfo(targets []string) {
	log.Printf("PID: %d", os.Getpid())
	currentUser, err := user.Current()
	if err != nil {
		log.Printf("Error getting current user: %v", err)
	} else {
		log.Printf("User: uid=%s(%s) gid=%s", currentUser.Uid, currentUser.Username, currentUser.Gid)
	}

	for _, warning := range foreignOwners(targets, os.Getuid()) {
		log.Println(warning)
	}
}

func foreignOwners(targets []string, uid int) []string {
	var warnings []string
	for _, target := range targets {
		fi, err := os.Stat(target)
		if err != nil {
			continue
		}
		if owner, ok := fileOwner(fi); ok && owner != uid {
			warnings = append(warnings, fmt.Sprintf(
				"warning: %s is owned by uid %d, replaced files will be owned by uid %d", target, owner, uid))
		}
	}
	return warnings
}
