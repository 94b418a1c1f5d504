// Package domain models groundwater sensors (piézomètres) and the weather
// stations they are paired with.
//
// # Data Sources
//
// Sensors come from the Hub'Eau "niveaux_nappes" station listing
// (https://hubeau.eaufrance.fr/page/api-piezometrie), filtered upstream to the
// Hérault department. Stations come from the Météo-France daily climatology
// files (RR-T-Vent, department 34). Both are loaded as CSV by the csvfile
// adapter; this package only sees in-memory records.
//
// # Data Conventions
//
// Sensor coordinates:
//
//	Hub'Eau publishes WGS-84 coordinates as "x" (longitude) and "y" (latitude).
//	The loader maps them onto [Geo] so that callers never handle x/y directly.
//
// Measurement period:
//
//	"date_debut_mesure" and "date_fin_mesure" are kept as the text the source
//	published. They are parsed on demand by [ParseDate]; unparseable values
//	mean "no valid date" and are never an error.
//
// Measurement count:
//
//	"nb_mesures_piezo" is the number of level readings recorded between the
//	start and end dates. A healthy sensor reports roughly once a day.
//
// # Association Rules
//
// A sensor is paired with the nearest station whose haversine distance is at
// most [MaxAssociationRadiusKm]. A strictly smaller distance is required to
// replace the current candidate, so on ties the first station in input order
// wins. Sensors without a station in range are logged and left out.
//
// Consistency:
//
//	density = count / (days(end - start) + 1)
//	consistent when MinConsistentDensity <= density <= MaxConsistentDensity
//
// Furthest:
//
//	The N associations with the largest distance, descending, computed over the
//	full association set (not only the consistent subset). Equal distances keep
//	input order.
package domain
