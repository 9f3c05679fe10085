package words

var defaultWords = []string{
	"apple", "banana", "cat", "dog", "elephant", "flower", "guitar", "house", "island", "jacket",
	"kite", "lion", "mountain", "notebook", "ocean", "penguin", "queen", "rainbow", "sun", "tree",
	"umbrella", "volcano", "waterfall", "xylophone", "yacht", "zebra", "airplane", "beach", "castle",
	"dragon", "eagle", "forest", "giraffe", "helicopter", "igloo", "jellyfish", "kangaroo", "lighthouse",
	"moon", "ninja", "octopus", "pirate", "robot", "spaceship", "tiger", "unicorn", "vampire", "wizard",
	"anchor", "balloon", "cactus", "dinosaur", "fireplace", "globe", "hat", "ice cream",
	"juggler", "key", "ladder", "map", "nest", "owl", "piano", "quilt", "rocket", "snowman", "telescope",
	"UFO", "vase", "whale", "X-ray", "yo-yo", "zipper", "backpack", "camera", "drums", "easel", "fence",
	"glasses", "hammer", "iguana", "jeans", "kettle", "lamp", "mask", "necklace", "oven", "puzzle",
	"ring", "scissors", "train", "violin", "wallet", "yogurt", "zoo",
}
