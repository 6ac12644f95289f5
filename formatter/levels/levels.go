package levels

// ValidLevelDesc holds four letter level names indexed by logrus.Level.
var ValidLevelDesc = []string{"PANC", "FATL", "ERRO", "WARN", "INFO", "DEBG", "TRAC"}
