// Package branding holds welkin's identity constants and the terminal
// palette shared by every styled output.
package branding

// Application identity.
const (
	AppName    = "welkin"
	CLIName    = "welkin page-object runner"
	BinaryName = "welkin"
)

// Palette in hex for lipgloss true color.
const (
	// ColorAccent backs titles.
	ColorAccent = "#4C1D95"
	// ColorPass marks verified pages and passing scenarios.
	ColorPass = "#14B8A6"
	// ColorFail marks failures.
	ColorFail = "#E11D48"
	// ColorWhite is title text.
	ColorWhite = "#FFFFFF"
	// ColorLabel is for secondary text such as page names and durations.
	ColorLabel = "#A1A1AA"
	// ColorBorder frames report panels.
	ColorBorder = "#52525B"
)

// Banner is printed by the version command.
const Banner = `
 __      __   _ _   _
 \ \    / /__| | |_(_)_ _
  \ \/\/ / -_) | / / | ' \
   \_/\_/\___|_|_\_\_|_||_|`

// StartupBanner returns the banner followed by the CLI name.
func StartupBanner() string {
	return Banner + "\n" +
		"  " + CLIName + "\n"
}
