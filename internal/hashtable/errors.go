package hashtable

import "errors"

// errExternalKeyNoArena is returned by Set when a key exceeds
// InlineKeyMaxSize but the caller supplied no keyArena to spill it into.
var errExternalKeyNoArena = errors.New("hashtable: key exceeds inline size but no external key arena was provided")
