package lobby

// tableWords is the fixed dictionary table ids are drawn from.
var tableWords = []string{
	"amber", "anchor", "apricot", "arrow", "aspen",
	"badger", "bazaar", "beacon", "birch", "breeze",
	"canyon", "cedar", "cinnamon", "clover", "comet",
	"coral", "crescent", "cypress", "dagger", "delta",
	"drift", "dune", "ember", "falcon", "fennel",
	"fig", "flint", "fjord", "galleon", "garnet",
	"ginger", "glacier", "grove", "harbor", "hazel",
	"heron", "hollow", "ivory", "jasper", "juniper",
	"kestrel", "lagoon", "lantern", "laurel", "lotus",
	"lynx", "maple", "marble", "meadow", "mesa",
	"mistral", "nectar", "nimbus", "oasis", "obsidian",
	"olive", "onyx", "opal", "orchid", "osprey",
	"pebble", "pepper", "pine", "plume", "prairie",
	"quartz", "quince", "raven", "reef", "ripple",
	"saffron", "sage", "sequoia", "sierra", "sparrow",
	"spruce", "summit", "sumac", "tamarind", "thistle",
	"tidal", "topaz", "tulip", "tundra", "velvet",
	"verdant", "vertex", "walnut", "willow", "wren",
	"yarrow", "zephyr", "zinnia",
}
