package stv0910

// lookupPoint maps a raw register reading to a value. Tables are sorted by
// descending reading.
type lookupPoint struct {
	value int32
	reg   uint32
}

// C/N in 0.1 dB against NNOSDATAT (DVB-S)
var snrS1 = []lookupPoint{
	{0, 9242}, {5, 9105}, {10, 8950}, {15, 8780}, {20, 8566},
	{25, 8366}, {30, 8146}, {35, 7908}, {40, 7666}, {45, 7405},
	{50, 7136}, {55, 6861}, {60, 6576}, {65, 6330}, {70, 6048},
	{75, 5768}, {80, 5492}, {85, 5224}, {90, 4959}, {95, 4709},
	{100, 4467}, {105, 4236}, {110, 4013}, {115, 3800}, {120, 3598},
	{125, 3406}, {130, 3225}, {135, 3052}, {140, 2889}, {145, 2733},
	{150, 2587}, {160, 2318}, {170, 2077}, {180, 1862}, {190, 1670},
	{200, 1499}, {210, 1347}, {220, 1213}, {230, 1095}, {240, 992},
	{250, 900}, {260, 819}, {270, 746}, {280, 681}, {290, 624},
	{300, 573}, {310, 528}, {320, 488}, {330, 453}, {340, 422},
	{350, 395}, {360, 371}, {370, 350}, {380, 331}, {390, 314},
	{400, 299}, {410, 286}, {420, 274}, {430, 264}, {440, 255},
	{450, 246}, {460, 238}, {470, 232}, {480, 226}, {490, 221},
	{500, 216},
}

// C/N in 0.1 dB against NNOSPLHT (DVB-S2)
var snrS2 = []lookupPoint{
	{-30, 13950}, {-25, 13580}, {-20, 13150}, {-15, 12760}, {-10, 12345},
	{-5, 11900}, {0, 11520}, {5, 11080}, {10, 10630}, {15, 10210},
	{20, 9790}, {25, 9390}, {30, 8970}, {35, 8575}, {40, 8180},
	{45, 7800}, {50, 7430}, {55, 7080}, {60, 6720}, {65, 6320},
	{70, 6060}, {75, 5760}, {80, 5480}, {85, 5200}, {90, 4930},
	{95, 4680}, {100, 4425}, {105, 4210}, {110, 3980}, {115, 3765},
	{120, 3570}, {125, 3315}, {130, 3140}, {135, 2980}, {140, 2820},
	{145, 2670}, {150, 2535}, {160, 2270}, {170, 2035}, {180, 1825},
	{190, 1650}, {200, 1485}, {210, 1340}, {220, 1212}, {230, 1100},
	{240, 1000}, {250, 910}, {260, 836}, {270, 772}, {280, 718},
	{290, 671}, {300, 635}, {310, 602}, {320, 575}, {330, 550},
	{340, 530}, {350, 512}, {360, 497}, {370, 483}, {380, 472},
	{390, 462}, {400, 453}, {410, 445}, {420, 438}, {430, 432},
	{440, 426}, {450, 421}, {460, 416}, {470, 412}, {480, 408},
	{490, 405}, {500, 402},
}

// Input power in 0.01 dBm against POWERI²+POWERQ²
var padc = []lookupPoint{
	{0, 118000}, {-100, 93600}, {-200, 74500}, {-300, 59100},
	{-400, 47000}, {-500, 37300}, {-600, 29650}, {-700, 23520},
	{-900, 14850}, {-1100, 9380}, {-1300, 5910}, {-1500, 3730},
	{-1700, 2354}, {-1900, 1485}, {-2000, 1179}, {-2100, 1000},
}

// padcOffset corrects the table for the AGC reference level (0.01 dB)
const padcOffset = 352

// lookup interpolates reg in table. Readings above the first entry clamp to
// its value and readings below the last clamp to the last value.
func lookup(table []lookupPoint, reg uint32) int32 {
	lo, hi := 0, len(table)-1
	if reg >= table[lo].reg {
		return table[lo].value
	}
	if reg <= table[hi].reg {
		return table[hi].value
	}
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if reg <= table[mid].reg {
			lo = mid
		} else {
			hi = mid
		}
	}
	// table[lo].reg >= reg > table[hi].reg
	span := int64(table[lo].reg) - int64(table[hi].reg)
	dv := int64(table[hi].value) - int64(table[lo].value)
	return table[lo].value + int32(int64(table[lo].reg-reg)*dv/span)
}
