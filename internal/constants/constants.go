package constants

const USER_AGENT = "gamegate/1.0 (+https://github.com/Amund211/gamegate)"
