package room

import "github.com/mcoot/turnclock/internal/dependencies/random"

var nameAdjectives = []string{
	"Amber", "Brisk", "Crimson", "Dusky", "Eager", "Frosty", "Gilded", "Hidden",
	"Ivory", "Jolly", "Keen", "Lunar", "Misty", "Noble", "Opal", "Quiet",
	"Rapid", "Silver", "Tidal", "Velvet",
}

var nameNouns = []string{
	"Badger", "Bishop", "Castle", "Comet", "Falcon", "Gambit", "Harbor", "Knight",
	"Lantern", "Meadow", "Otter", "Pawn", "Quarry", "Raven", "Rook", "Summit",
	"Thistle", "Tower", "Willow", "Zephyr",
}

// GenerateName returns a random two-word room name
func GenerateName(r random.Random) string {
	return r.Pick(nameAdjectives) + " " + r.Pick(nameNouns)
}
