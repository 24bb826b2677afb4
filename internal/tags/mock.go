package tags

import "math/rand"

var mockIDs = []string{
	"abc123", "abc456", "abc789",
	"def123", "def456", "def789",
	"ghi123", "ghi456", "ghi789",
}

// Random returns a valid detection drawn from a small fixed id pool.
func Random() Tag {
	return Tag{
		ID:       mockIDs[rand.Intn(len(mockIDs))],
		Antenna:  MinAntenna + uint16(rand.Intn(int(MaxAntenna-MinAntenna)+1)),
		Strength: MinStrength + int8(rand.Intn(int(MaxStrength)-int(MinStrength))),
	}
}

// RandomMap reduces n random detections.
func RandomMap(n int) TagsMap {
	m := make(TagsMap, n)
	for i := 0; i < n; i++ {
		m.Add(Random())
	}
	return m
}
