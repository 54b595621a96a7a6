package term

// specialKeys maps the symbolic keys send_specials accepts to the byte
// sequences a VT100-compatible terminal expects.
var specialKeys = map[string][]byte{
	"Enter":      {'\r'},
	"ArrowUp":    {0x1b, '[', 'A'},
	"ArrowDown":  {0x1b, '[', 'B'},
	"ArrowRight": {0x1b, '[', 'C'},
	"ArrowLeft":  {0x1b, '[', 'D'},
	"Ctrl-c":     {0x03},
	"Ctrl-d":     {0x04},
}
