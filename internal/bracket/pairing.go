package bracket

// Pair splits players into matches by list order: index i plays index i+1 for every even i.
// With an odd count the last player gets a bye and is returned separately.
func Pair(players []PlayerRef) (pairs [][2]PlayerRef, bye *PlayerRef) {
	pairs = make([][2]PlayerRef, 0, len(players)/2)
	for i := 0; i+1 < len(players); i += 2 {
		pairs = append(pairs, [2]PlayerRef{players[i], players[i+1]})
	}
	if len(players)%2 == 1 {
		last := players[len(players)-1]
		bye = &last
	}
	return pairs, bye
}
