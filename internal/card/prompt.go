package card

// systemInstruction pins the response shape.
const systemInstruction = `You are an OCR assistant that extracts structured car-card details. ` +
	`Return only valid JSON with the exact schema: ` +
	`{"plate_number":"","vin":"","make":"","model":"","year":"","color":"","engine_number":"",` +
	`"owner_name":"","registration_date":"","expiry_date":"","country":"","vehicle_type":"","fuel":"","capacity":"",` +
	`"confidence":{"plate_number":0,"vin":0,"make":0,"model":0,"year":0,"color":0,"engine_number":0,` +
	`"owner_name":0,"registration_date":0,"expiry_date":0,"country":0,"vehicle_type":0,"fuel":0,"capacity":0},` +
	`"raw_text":""}. Use empty strings when data is missing. Confidence values are numbers between 0 and 1. ` +
	`Do not add extra keys or text.`

// ExtractionPrompt is sent alongside the card image.
const ExtractionPrompt = `Read the vehicle registration card in the image and return ONLY one JSON object matching the schema.

Reading rules:
- Cards are often Persian/Farsi (right-to-left). Read every visible line, including Persian digits (۰۱۲۳۴۵۶۷۸۹) and Latin characters.
- Convert Persian and Arabic-Indic digits to Western digits (۱۳۹۸ becomes 1398).
- Copy values exactly as printed after digit conversion. Never invent values.
- A field that is not on this side of the card is "" with confidence 0.
- No extra keys, no markdown, no commentary.

Label hints for the back of an Iranian card:
- vin: the value beside "شاسی", usually a long alphanumeric starting with NA.
- engine_number: the value beside "موتور".
- make: the value beside "سیستم". Prefer an English transliteration when it is obvious (پژو is "Peugeot"), otherwise keep the Persian text.
- model: the value beside "تیپ", e.g. 405GLX-XU7-CNG. Without "تیپ", use the nearest model or type line.
- year: the value beside "مدل", e.g. 1398, as a string.
- color: the value beside "رنگ".
- vehicle_type: the value beside "نوع".
- fuel: the value beside "سوخت".
- capacity: the value beside "ظرفیت", kept as printed (e.g. "5 نفر").
- plate_number, owner_name, registration_date, expiry_date: usually on the front. Fill only when clearly visible.
- country: "Iran" for Persian cards with a 13xx model year, otherwise only from explicit text, else "".

raw_text: a best-effort plain transcription of every readable line, Persian and English, separated by newlines.

confidence, per field, between 0 and 1:
- 0.85 to 1.0 when the value is clearly printed next to its label.
- 0.5 to 0.85 when readable but somewhat uncertain.
- 0 to 0.5 when guessed or inferred. An empty value always has confidence 0.

Return ONLY the JSON object.`
