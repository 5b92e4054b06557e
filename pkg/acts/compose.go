package acts

import (
	"fmt"
	"strings"
	"time"
)

func consolidatedSubject(now time.Time) string {
	return fmt.Sprintf("Equipment transfer acts from %s", now.Format("02.01.2006"))
}

func consolidatedBody(b *Batch, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("Hello!\n\nThe equipment transfer acts are attached:\n\n")
	for i, a := range b.Acts {
		fmt.Fprintf(&sb, "%d. From %s → %s (%d units)\n", i+1, a.OldEmployee, b.NewEmployee, a.EquipmentCount)
	}
	fmt.Fprintf(&sb, "\nTotal equipment: %d\n", b.TotalEquipment)
	if b.SourceDBName != "" {
		fmt.Fprintf(&sb, "Database: %s\n", b.SourceDBName)
	}
	fmt.Fprintf(&sb, "Date: %s\n\n", now.Format("02.01.2006 15:04"))
	sb.WriteString("Please sign the acts and reply with the scanned copies.\n\nThank you!")
	return sb.String()
}

func ownerSubject(a Act) string {
	return "Equipment transfer act: " + a.Filename
}

func ownerBody(a Act) string {
	return fmt.Sprintf("Hello, %s!\n\n"+
		"The equipment transfer act is attached.\n\n"+
		"Please sign it and reply with the scanned copy.\n\n"+
		"Thank you!", a.OldEmployee)
}
