package errors

// UserMessage maps an error to a sentence suitable for the host
// application's spoken or text response. The host may substitute its own
// wording; these are fallbacks keyed on the taxonomy, not fixed phrasing.
func UserMessage(err error) string {
	switch Code(err) {
	case CodeConnectivity:
		return "I was unable to connect to the internet. Please check your connection settings and retry."
	case CodeDeviceOffline:
		return "I wasn't able to locate that device. It is probably offline."
	case CodeNotFound:
		return "I couldn't find what you asked for."
	case CodeGeocodingUnavailable:
		return "The map service isn't responding right now."
	case CodePlaceNotFound:
		return "I don't think that place exists."
	case CodeNoCurrentLocation:
		return "I neither received an origin location nor was able to get my own location."
	case CodeReadFailure:
		return "I wasn't able to get the location details. Please check the logs."
	case CodeValidation:
		return "That request didn't make sense to me."
	default:
		return "Something went wrong. Please check the logs."
	}
}
