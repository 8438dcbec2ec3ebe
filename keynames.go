package main

import evdev "github.com/holoplot/go-evdev"

// KeyNameMap maps evdev key codes to the clip names used by sound
// mappings: letters and digits by themselves, everything else by a
// lowercase word matching the original keysound naming.
var KeyNameMap = map[evdev.EvCode]string{
	evdev.KEY_A: "a", evdev.KEY_B: "b",
	evdev.KEY_C: "c", evdev.KEY_D: "d",
	evdev.KEY_E: "e", evdev.KEY_F: "f",
	evdev.KEY_G: "g", evdev.KEY_H: "h",
	evdev.KEY_I: "i", evdev.KEY_J: "j",
	evdev.KEY_K: "k", evdev.KEY_L: "l",
	evdev.KEY_M: "m", evdev.KEY_N: "n",
	evdev.KEY_O: "o", evdev.KEY_P: "p",
	evdev.KEY_Q: "q", evdev.KEY_R: "r",
	evdev.KEY_S: "s", evdev.KEY_T: "t",
	evdev.KEY_U: "u", evdev.KEY_V: "v",
	evdev.KEY_W: "w", evdev.KEY_X: "x",
	evdev.KEY_Y: "y", evdev.KEY_Z: "z",

	evdev.KEY_1: "1", evdev.KEY_2: "2",
	evdev.KEY_3: "3", evdev.KEY_4: "4",
	evdev.KEY_5: "5", evdev.KEY_6: "6",
	evdev.KEY_7: "7", evdev.KEY_8: "8",
	evdev.KEY_9: "9", evdev.KEY_0: "0",

	evdev.KEY_MINUS:      "minus",
	evdev.KEY_EQUAL:      "equal",
	evdev.KEY_LEFTBRACE:  "leftbrace",
	evdev.KEY_RIGHTBRACE: "rightbrace",
	evdev.KEY_SEMICOLON:  "semicolon",
	evdev.KEY_APOSTROPHE: "apostrophe",
	evdev.KEY_GRAVE:      "grave",
	evdev.KEY_BACKSLASH:  "backslash",
	evdev.KEY_COMMA:      "comma",
	evdev.KEY_DOT:        "dot",
	evdev.KEY_SLASH:      "slash",

	evdev.KEY_SPACE:     "space",
	evdev.KEY_ENTER:     "enter",
	evdev.KEY_BACKSPACE: "backspace",
	evdev.KEY_TAB:       "tab",
	evdev.KEY_ESC:       "esc",
	evdev.KEY_CAPSLOCK:  "capslock",
	evdev.KEY_DELETE:    "delete",
	evdev.KEY_INSERT:    "insert",
	evdev.KEY_HOME:      "home",
	evdev.KEY_END:       "end",
	evdev.KEY_PAGEUP:    "pageup",
	evdev.KEY_PAGEDOWN:  "pagedown",
	evdev.KEY_UP:        "up",
	evdev.KEY_DOWN:      "down",
	evdev.KEY_LEFT:      "left",
	evdev.KEY_RIGHT:     "right",

	evdev.KEY_LEFTSHIFT:  "shift",
	evdev.KEY_RIGHTSHIFT: "shift",
	evdev.KEY_LEFTCTRL:   "ctrl",
	evdev.KEY_RIGHTCTRL:  "ctrl",
	evdev.KEY_LEFTALT:    "alt",
	evdev.KEY_RIGHTALT:   "alt",
	evdev.KEY_LEFTMETA:   "meta",
	evdev.KEY_RIGHTMETA:  "meta",

	evdev.KEY_F1: "f1", evdev.KEY_F2: "f2",
	evdev.KEY_F3: "f3", evdev.KEY_F4: "f4",
	evdev.KEY_F5: "f5", evdev.KEY_F6: "f6",
	evdev.KEY_F7: "f7", evdev.KEY_F8: "f8",
	evdev.KEY_F9: "f9", evdev.KEY_F10: "f10",
	evdev.KEY_F11: "f11", evdev.KEY_F12: "f12",
}

// candidateNames yields the clip names to try for a key press, most
// specific first. "default" is always the last resort, so a mapping
// with only a default clip still sounds every key.
func candidateNames(code evdev.EvCode) []string {
	if name, ok := KeyNameMap[code]; ok {
		return []string{name, "default"}
	}
	return []string{"default"}
}
