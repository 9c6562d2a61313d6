package game

// wordList is the secret-word pool for drawing rounds.
var wordList = []string{
	"house", "bicycle", "elephant", "guitar", "mountain", "pizza",
	"rocket", "umbrella", "dragon", "lighthouse", "penguin", "volcano",
	"sandwich", "telescope", "butterfly", "castle", "robot", "rainbow",
	"octopus", "campfire", "snowman", "pirate", "cactus", "hamburger",
	"submarine", "tornado", "wizard", "anchor", "balloon", "compass",
	"dinosaur", "firework", "giraffe", "helicopter", "island", "jellyfish",
	"kangaroo", "ladder", "mermaid", "ninja", "owl", "parachute",
	"quilt", "rhinoceros", "scarecrow", "treasure", "unicorn", "violin",
	"waterfall", "xylophone", "yacht", "zebra", "astronaut", "bridge",
	"candle", "drum", "eagle", "feather", "glacier", "hammock",
}
