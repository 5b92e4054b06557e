package dialog

// Main menu labels. The gateway renders them as a persistent keyboard and
// sends the label back as text when tapped.
const (
	MenuFind     = "🔎 Find equipment"
	MenuEmployee = "👤 Find by employee"
	MenuUnfound  = "📝 Register unfound"
	MenuTransfer = "📦 Transfer with act"
	MenuWork     = "🔧 Work log"
	MenuDatabase = "🗄️ Databases"
)

var MainMenu = [][]string{
	{MenuFind, MenuEmployee},
	{MenuUnfound, MenuTransfer},
	{MenuWork, MenuDatabase},
}

// IsMenuLabel reports whether text is one of the main menu buttons.
func IsMenuLabel(text string) bool {
	for _, row := range MainMenu {
		for _, l := range row {
			if l == text {
				return true
			}
		}
	}
	return false
}
